package ephemeris

import "testing"

func TestNewFetcherValidatesSourceURL(t *testing.T) {
	logger := discardLogger()
	store := NewStore(logger)

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"default", "", false},
		{"custom mirror", "https://mirror.example.com/gnss/%d/%03d/brdc.%02dn.gz", false},
		{"no placeholders", "https://mirror.example.com/gnss/brdc.gz", true},
		{"wrong placeholder count", "https://mirror.example.com/%d/brdc.gz", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFetcher(tt.url, t.TempDir(), store, logger)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewFetcher(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
