package gcsuploader

import "testing"

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{uri: "gs://data/upi/2024.csv", wantBucket: "data", wantObject: "upi/2024.csv"},
		{uri: "gs://data/file.csv", wantBucket: "data", wantObject: "file.csv"},
		{uri: "gs://data", wantErr: true},
		{uri: "gs://data/", wantErr: true},
		{uri: "s3://data/file.csv", wantErr: true},
		{uri: "/tmp/file.csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI(%q) = %q, %q; want %q, %q", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestObjectURI(t *testing.T) {
	if got := ObjectURI("data", "/upi/2024.csv"); got != "gs://data/upi/2024.csv" {
		t.Errorf("ObjectURI = %q", got)
	}
}

func TestContentType(t *testing.T) {
	if got := contentType("x/Data.CSV"); got != "text/csv" {
		t.Errorf("contentType = %q", got)
	}
	if got := contentType("x/blob"); got != "application/octet-stream" {
		t.Errorf("contentType = %q", got)
	}
}
