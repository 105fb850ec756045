package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const (
	peace  = "☮\ufe0f"
	flag   = "🏴"
	alien  = "👽"
	pirate = "🏴\u200d☠\ufe0f"
)

func TestParse(t *testing.T) {
	t.Run("splits marker, location and resource path", func(t *testing.T) {
		addr, ok := Parse("💚☮\ufe0f🏴👽/bdo/42")
		require.True(t, ok)
		assert.Equal(t, DefaultMarker, addr.Prefix)
		assert.Equal(t, Location{peace, flag, alien}, addr.Location)
		assert.Equal(t, peace+flag+alien, addr.Location.String())
		assert.Equal(t, "/bdo/42", addr.ResourcePath)
	})

	t.Run("nothing after the location yields an empty path", func(t *testing.T) {
		addr, ok := Parse("💚☮\ufe0f🏴👽")
		require.True(t, ok)
		assert.Empty(t, addr.ResourcePath)
	})

	t.Run("path keeps literal text and later emoji verbatim", func(t *testing.T) {
		addr, ok := Parse("💚☮\ufe0f🏴👽 hello 🎯/x")
		require.True(t, ok)
		assert.Equal(t, " hello 🎯/x", addr.ResourcePath)
	})

	t.Run("separators inside the prefix are dropped", func(t *testing.T) {
		addr, ok := Parse("see 💚 ☮\ufe0f 🏴 👽/x")
		require.True(t, ok)
		assert.Equal(t, Location{peace, flag, alien}, addr.Location)
		assert.Equal(t, "/x", addr.ResourcePath)
	})

	t.Run("repeated location tokens use the third token's position", func(t *testing.T) {
		addr, ok := Parse("💚👽👽👽/a")
		require.True(t, ok)
		assert.Equal(t, Location{alien, alien, alien}, addr.Location)
		assert.Equal(t, "/a", addr.ResourcePath)
	})

	t.Run("zwj sequence is one location token", func(t *testing.T) {
		addr, ok := Parse("💚" + pirate + "👽🎯/p")
		require.True(t, ok)
		assert.Equal(t, Location{pirate, alien, "🎯"}, addr.Location)
		assert.Equal(t, "/p", addr.ResourcePath)
	})

	t.Run("rejects fewer than four tokens", func(t *testing.T) {
		_, ok := Parse("💚☮\ufe0f🏴/x")
		assert.False(t, ok)
		assert.False(t, IsFederated("💚☮\ufe0f🏴/x"))
	})

	t.Run("rejects a different first token", func(t *testing.T) {
		_, ok := Parse("🎯☮\ufe0f🏴👽/x")
		assert.False(t, ok)
	})

	t.Run("rejects plain text", func(t *testing.T) {
		_, ok := Parse("/bdo/42")
		assert.False(t, ok)
		_, ok = Parse("")
		assert.False(t, ok)
	})
}

func TestParser_WithMarker(t *testing.T) {
	p := NewParser(WithMarker("🌐"))
	assert.Equal(t, "🌐", p.Marker())

	addr, ok := p.Parse("🌐☮\ufe0f🏴👽/bdo")
	require.True(t, ok)
	assert.Equal(t, "🌐", addr.Prefix)
	assert.False(t, p.IsFederated("💚☮\ufe0f🏴👽/bdo"))

	assert.Equal(t, DefaultMarker, NewParser(WithMarker("")).Marker())
}

func TestParseLocation(t *testing.T) {
	t.Run("accepts exactly three tokens", func(t *testing.T) {
		loc, err := ParseLocation("☮\ufe0f🏴👽")
		require.NoError(t, err)
		assert.Equal(t, Location{peace, flag, alien}, loc)
		assert.False(t, loc.IsZero())
	})

	t.Run("ignores surrounding whitespace", func(t *testing.T) {
		loc, err := ParseLocation("  ☮\ufe0f🏴👽\n")
		require.NoError(t, err)
		assert.Equal(t, "☮\ufe0f🏴👽", loc.String())
	})

	invalid := map[string]string{
		"two tokens":        "☮\ufe0f🏴",
		"four tokens":       "☮\ufe0f🏴👽🎯",
		"text between":      "☮\ufe0f 🏴👽",
		"trailing text":     "☮\ufe0f🏴👽/x",
		"empty":             "",
		"plain text":        "abc",
		"marker plus three": "💚☮\ufe0f🏴👽",
	}
	for name, input := range invalid {
		t.Run("rejects "+name, func(t *testing.T) {
			loc, err := ParseLocation(input)
			assert.ErrorIs(t, err, ErrInvalidLocation)
			assert.True(t, loc.IsZero())
		})
	}
}

var tokenPool = []string{
	peace, flag, alien, pirate,
	"🎯", "🎪", "🎡", "🌈", "🦄", "✨", "🔥", "💎", "🌟",
	"🇺🇸", "1\ufe0f\u20e3", "👍🏽", DefaultMarker,
}

func nonMarkerPool() []string {
	out := make([]string, 0, len(tokenPool))
	for _, tok := range tokenPool {
		if tok != DefaultMarker {
			out = append(out, tok)
		}
	}
	return out
}

func TestIsFederated_RequiresMarkerFirst(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lead := rapid.StringMatching(`[a-z /]{0,6}`).Draw(t, "lead")
		first := rapid.SampledFrom(nonMarkerPool()).Draw(t, "first")
		rest := rapid.SliceOfN(rapid.SampledFrom(tokenPool), 0, 6).Draw(t, "rest")
		text := lead + first
		for _, tok := range rest {
			text += tok
		}
		if IsFederated(text) {
			t.Fatalf("IsFederated(%q) = true with first token %q", text, first)
		}
	})
}

func TestParse_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		loc := Location{
			rapid.SampledFrom(tokenPool).Draw(t, "loc0"),
			rapid.SampledFrom(tokenPool).Draw(t, "loc1"),
			rapid.SampledFrom(tokenPool).Draw(t, "loc2"),
		}
		path := rapid.StringMatching(`(/[a-z0-9]{1,8}){0,3}`).Draw(t, "path")
		want := Address{Prefix: DefaultMarker, Location: loc, ResourcePath: path}

		got, ok := Parse(want.String())
		if !ok {
			t.Fatalf("Parse(%q) failed", want.String())
		}
		if got != want {
			t.Fatalf("Parse(%q) = %+v, want %+v", want.String(), got, want)
		}

		again, ok := Parse(got.String())
		if !ok || again != got {
			t.Fatalf("re-parse of %q = %+v, want %+v", got.String(), again, got)
		}
	})
}
