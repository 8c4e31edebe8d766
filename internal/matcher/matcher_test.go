package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blackwell-systems/modsync/internal/catalog"
)

func entry(name, slug string) catalog.Entry {
	return catalog.Entry{
		Name:          name,
		Slug:          slug,
		URL:           "https://www.curseforge.com/hytale/mods/" + slug,
		LatestVersion: "1.0." + slug,
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Admin UI":         "adminui",
		"Better_Map-v2!":   "bettermapv2",
		"  ÉLITE mobs  ":   "litemobs",
		"":                 "",
		"---":              "",
		"Hytale Mod 1.0.4": "hytalemod104",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Admin UI":        "admin-ui",
		"Better__Map  v2": "better-map-v2",
		"--Edge Case--":   "edge-case",
		"Simple":          "simple",
		"!!!":             "",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 100, Similarity("", ""))
	assert.Equal(t, 100, Similarity("abcde", "abcde"))
	assert.Equal(t, 80, Similarity("abcde", "abcdx"))
	// 1 edit over 6 characters rounds 83.3 down.
	assert.Equal(t, 83, Similarity("abcdef", "abcdex"))
	// 1 edit over 8 characters rounds 87.5 up.
	assert.Equal(t, 88, Similarity("abcdefgh", "abcdefgx"))
}

func TestFindBestMatch_Tiers(t *testing.T) {
	m := New(DefaultFuzzyThreshold)

	tests := []struct {
		name       string
		local      string
		candidates []catalog.Entry
		wantSlug   string
		wantMethod string
		wantOK     bool
	}{
		{
			name:       "exact normalized",
			local:      "Admin-UI",
			candidates: []catalog.Entry{entry("Admin UI", "admin-user-interface")},
			wantSlug:   "admin-user-interface",
			wantMethod: MethodExact,
			wantOK:     true,
		},
		{
			name:       "slug",
			local:      "Better Map",
			candidates: []catalog.Entry{entry("BM: the better map mod", "better-map")},
			wantSlug:   "better-map",
			wantMethod: MethodSlug,
			wantOK:     true,
		},
		{
			name:       "substring local in candidate",
			local:      "Horses",
			candidates: []catalog.Entry{entry("Aures Horses", "aures-horses")},
			wantSlug:   "aures-horses",
			wantMethod: MethodSubstring,
			wantOK:     true,
		},
		{
			name:       "substring candidate in local",
			local:      "Aures Horses Reloaded",
			candidates: []catalog.Entry{entry("Aures Horses", "aures-horses")},
			wantSlug:   "aures-horses",
			wantMethod: MethodSubstring,
			wantOK:     true,
		},
		{
			name:       "fuzzy above threshold",
			local:      "Inventory Sorter",
			candidates: []catalog.Entry{entry("Inventory Sorted", "inv-sorted")},
			wantSlug:   "inv-sorted",
			wantMethod: "fuzzy:93%",
			wantOK:     true,
		},
		{
			name:       "fuzzy below threshold",
			local:      "Inventory Sorter",
			candidates: []catalog.Entry{entry("Invisible Sword", "inv-sword")},
			wantOK:     false,
		},
		{
			name:       "no candidates",
			local:      "Anything",
			candidates: nil,
			wantOK:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.FindBestMatch(tt.local, tt.candidates)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, "https://www.curseforge.com/hytale/mods/"+tt.wantSlug, got.URL)
			assert.Equal(t, tt.wantMethod, got.Method)
			assert.Equal(t, "1.0."+tt.wantSlug, got.LatestVersion)
		})
	}
}

func TestFindBestMatch_ExactBeatsEarlierFuzzy(t *testing.T) {
	m := New(DefaultFuzzyThreshold)
	candidates := []catalog.Entry{
		entry("Farming Plux", "farming-plux"),
		entry("Farming Plox", "farming-plox"),
		entry("farming-plus!", "farming-plus-exact"),
	}

	got, ok := m.FindBestMatch("Farming+Plus", candidates)
	assert.True(t, ok)
	assert.Equal(t, MethodExact, got.Method)
	assert.Contains(t, got.URL, "farming-plus-exact")
}

func TestFindBestMatch_EarlierTierWinsOverLaterFuzzyCandidate(t *testing.T) {
	m := New(DefaultFuzzyThreshold)
	candidates := []catalog.Entry{
		entry("Completely Different", "nope"),
		entry("Mob Spawnerz", "mob-spawnerz"),
		entry("Mob Spawner", "mob-spawner"),
	}

	got, ok := m.FindBestMatch("Mob Spawner", candidates)
	assert.True(t, ok)
	// "mobspawner" is contained in "mobspawnerz", found on the substring
	// tier before the later exact candidate is reached.
	assert.Equal(t, MethodSubstring, got.Method)
	assert.Contains(t, got.URL, "mob-spawnerz")
}

func TestFindBestMatch_FuzzyTiesKeepFirstSeen(t *testing.T) {
	m := New(DefaultFuzzyThreshold)
	candidates := []catalog.Entry{
		entry("Abcdefghix", "first"),
		entry("Abcdefghiy", "second"),
	}

	got, ok := m.FindBestMatch("Abcdefghiz", candidates)
	assert.True(t, ok)
	assert.Equal(t, "fuzzy:90%", got.Method)
	assert.Contains(t, got.URL, "first")
}

func TestFindBestMatch_FuzzyAcceptsExactlyThreshold(t *testing.T) {
	assert.Equal(t, 80, Similarity("abcdefghij", "abcdefghxy"))

	got, ok := New(DefaultFuzzyThreshold).FindBestMatch("abcdefghij", []catalog.Entry{entry("abcdefghxy", "other")})
	assert.True(t, ok)
	assert.Equal(t, "fuzzy:80%", got.Method)

	_, ok = New(81).FindBestMatch("abcdefghij", []catalog.Entry{entry("abcdefghxy", "other")})
	assert.False(t, ok)
}

func TestFindBestMatch_EmptyNormalizedNameMatchesNothing(t *testing.T) {
	m := New(DefaultFuzzyThreshold)
	candidates := []catalog.Entry{
		entry("???", ""),
		entry("---", "dashes"),
	}

	_, ok := m.FindBestMatch("!!!", candidates)
	assert.False(t, ok, "punctuation-only names must not exact or slug match")

	_, ok = m.FindBestMatch("", candidates)
	assert.False(t, ok)
}

func TestFindBestMatch_ShortNamesNeverSubstringOrFuzzy(t *testing.T) {
	m := New(60)
	candidates := []catalog.Entry{
		entry("Meteors", "meteors"),
		entry("Mee", "mee"),
	}

	_, ok := m.FindBestMatch("Me", candidates)
	assert.False(t, ok, "a 2 character name must not substring or fuzzy match")

	_, ok = m.FindBestMatch("Mees", []catalog.Entry{entry("Meesy", "meesy")})
	assert.False(t, ok, "a 4 character name must not fuzzy match")
}

func TestFindBestMatch_ShortCandidatesSkippedByFuzzy(t *testing.T) {
	m := New(50)
	_, ok := m.FindBestMatch("Tools", []catalog.Entry{entry("Tool", "tool-x")})
	assert.False(t, ok)
}

func TestNew_ClampsThreshold(t *testing.T) {
	assert.Equal(t, DefaultFuzzyThreshold, New(0).Threshold())
	assert.Equal(t, DefaultFuzzyThreshold, New(100).Threshold())
	assert.Equal(t, 60, New(60).Threshold())
}

func TestIsFuzzy(t *testing.T) {
	assert.True(t, IsFuzzy("fuzzy:85%"))
	assert.False(t, IsFuzzy(MethodExact))
}
