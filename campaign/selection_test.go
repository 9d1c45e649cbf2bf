package campaign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    Selection
		wantErr error
	}{
		{
			name: "single catalog",
			spec: "redhat=foo,bar",
			want: Selection{Catalogs: []CatalogSelection{{Index: "redhat", Units: []string{"foo", "bar"}}}},
		},
		{
			name: "image reference with tag",
			spec: "registry.example.com/index:v4.20=foo;certified=baz;",
			want: Selection{Catalogs: []CatalogSelection{
				{Index: "registry.example.com/index:v4.20", Units: []string{"foo"}},
				{Index: "certified", Units: []string{"baz"}},
			}},
		},
		{
			name: "duplicates and blanks dropped",
			spec: "redhat= foo, ,foo,bar",
			want: Selection{Catalogs: []CatalogSelection{{Index: "redhat", Units: []string{"foo", "bar"}}}},
		},
		{
			name:    "empty",
			spec:    "  ",
			wantErr: ErrNoUnitsSpecified,
		},
		{
			name:    "no units anywhere",
			spec:    "redhat=;certified=,",
			wantErr: ErrNoUnitsSpecified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSelection(tt.spec)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSelection_MissingSeparator(t *testing.T) {
	_, err := ParseSelection("redhat")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoUnitsSpecified)
}

func TestSelection_StringRoundTrip(t *testing.T) {
	sel, err := ParseSelection("redhat=a,b;certified=c")
	require.NoError(t, err)
	again, err := ParseSelection(sel.String())
	require.NoError(t, err)
	assert.Equal(t, sel, again)
	assert.Equal(t, 3, again.UnitCount())
}
