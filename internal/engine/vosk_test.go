package engine

import "testing"

// TestParseRecognizerText checks extraction of the text field from the
// recognizer's JSON payload.
func TestParseRecognizerText(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{name: "committed utterance", payload: `{"text": "hello world"}`, want: "hello world"},
		{name: "empty result", payload: `{"text": ""}`, want: ""},
		{name: "partial fields ignored", payload: `{"partial": "hel", "text": "hello"}`, want: "hello"},
		{name: "malformed payload", payload: `{not json`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseRecognizerText(tc.payload)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRecognizerText returned error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("text = %q, want %q", got, tc.want)
			}
		})
	}
}
