package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		arg     string
		want    string
		wantErr bool
	}{
		{name: "today", arg: " today", want: "05/03/2025"},
		{name: "yesterday", arg: "Yesterday", want: "04/03/2025"},
		{name: "tomorrow", arg: ": tomorrow", want: "06/03/2025"},
		{name: "slashes", arg: "05/03/2025", want: "05/03/2025"},
		{name: "dashes single digits", arg: "5-3-2025", want: "05/03/2025"},
		{name: "two digit year", arg: "05.03.25", want: "05/03/2025"},
		{name: "long", arg: "5 March 2025", want: "05/03/2025"},
		{name: "ordinal", arg: "5th of March, 2025", want: "05/03/2025"},
		{name: "month first", arg: "March 5th 2025", want: "05/03/2025"},
		{name: "short month", arg: "1 Jan 2024", want: "01/01/2024"},
		{name: "no year", arg: "28 feb", want: "28/02/2025"},
		{name: "impossible day", arg: "32/13/2025", wantErr: true},
		{name: "february 30", arg: "30/02/2025", wantErr: true},
		{name: "words", arg: "someday", wantErr: true},
		{name: "empty", arg: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.arg, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
