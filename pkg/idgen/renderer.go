package idgen

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/idbuilder/pkg/domain"
)

// datePatternReplacer maps the template date letters onto Go's
// reference layout. Unknown letters pass through literally.
var datePatternReplacer = strings.NewReplacer(
	"yyyy", "2006",
	"MM", "01",
	"dd", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

// renderParts renders one formatted ID for counter value n at time now.
// All parts except auto_increment are pure functions of (now, n); the
// rng feeds fixed_random_chars only.
func renderParts(parts []domain.Part, now time.Time, n int64, rng *rand.Rand) string {
	var b strings.Builder
	for i := range parts {
		p := &parts[i]
		switch p.Type {
		case domain.PartFixedChars:
			b.WriteString(p.Value)

		case domain.PartFixedPollingChar:
			chars := []rune(p.Chars)
			b.WriteRune(chars[n%int64(len(chars))])

		case domain.PartFixedRandomChars:
			chars := []rune(p.Chars)
			for j := 0; j < p.Length; j++ {
				b.WriteRune(chars[rng.Intn(len(chars))])
			}

		case domain.PartDateFormat:
			layout := datePatternReplacer.Replace(p.Pattern)
			b.WriteString(now.In(p.Location()).Format(layout))

		case domain.PartTimestamp:
			b.WriteString(strconv.FormatInt(now.UnixMilli()-p.BaseTS, 10))

		case domain.PartUnixSeconds:
			b.WriteString(strconv.FormatInt(now.Unix()-p.Base, 10))

		case domain.PartAutoIncrement:
			b.WriteString(renderCounter(p, n))
		}
	}
	return b.String()
}

// renderCounter renders n in the part's radix and pads it to the
// configured width. Without length_fixed the width may grow past
// Length; with it the value is padded but never truncated.
func renderCounter(p *domain.Part, n int64) string {
	s := strconv.FormatInt(n, p.EffectiveNumberBase())
	if len(s) >= p.Length {
		return s
	}

	pad := strings.Repeat(string(p.EffectivePaddingChar()), p.Length-len(s))
	if !p.LengthFixed {
		return s
	}
	if p.PaddingMode == domain.PaddingSuffix {
		return s + pad
	}
	return pad + s
}
