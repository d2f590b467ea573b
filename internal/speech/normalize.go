package speech

import (
	"regexp"
	"strings"
)

var (
	blockMathRe  = regexp.MustCompile(`(?s)\$\$(.*?)\$\$`)
	inlineMathRe = regexp.MustCompile(`\$([^\n]*?)\$`)

	fracRe       = regexp.MustCompile(`\\frac\{([^}]+)\}\{([^}]+)\}`)
	nthRootRe    = regexp.MustCompile(`\\sqrt\[([^\]]+)\]\{([^}]+)\}`)
	sqrtBracedRe = regexp.MustCompile(`\\sqrt\{([^}]+)\}`)
	sqrtBareRe   = regexp.MustCompile(`\\sqrt\s*(\w)`)
	powBracedRe  = regexp.MustCompile(`(\w)\^\{([^}]+)\}`)
	powDigitsRe  = regexp.MustCompile(`(\w)\^([0-9]+)`)
	powWordRe    = regexp.MustCompile(`(\w)\^(\w)`)
	subBracedRe  = regexp.MustCompile(`(\w)_\{([^}]+)\}`)
	subWordRe    = regexp.MustCompile(`(\w)_(\w)`)
	mathMarkupRe = regexp.MustCompile(`[\\{}$]`)
	fencedCodeRe = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`([^`\n]+)`")
	imageRe      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	boldRe       = regexp.MustCompile(`\*\*([^*\n]+?)\*\*`)
	italicRe     = regexp.MustCompile(`\*([^*\s](?:[^*\n]*[^*\s])?)\*`)
	headerRe     = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// mathWords maps LaTeX commands to their spoken form. Spaces around the words are collapsed later.
var mathWords = strings.NewReplacer(
	`\alpha`, "alpha",
	`\beta`, "beta",
	`\gamma`, "gamma",
	`\delta`, "delta",
	`\epsilon`, "epsilon",
	`\theta`, "theta",
	`\lambda`, "lambda",
	`\mu`, "mu",
	`\pi`, "pi",
	`\sigma`, "sigma",
	`\omega`, "omega",
	`\phi`, "phi",
	`\psi`, "psi",
	`\rho`, "rho",
	`\tau`, "tau",
	`\times`, " times ",
	`\cdot`, " times ",
	`\div`, " divided by ",
	`\pm`, " plus or minus ",
	`\leq`, " less than or equal to ",
	`\geq`, " greater than or equal to ",
	`\neq`, " not equal to ",
	`\approx`, " approximately ",
	`\infty`, " infinity ",
	`\sum`, " sum of ",
	`\prod`, " product of ",
	`\int`, " integral of ",
	`\lim`, " limit of ",
	`\sin`, " sine of ",
	`\cos`, " cosine of ",
	`\tan`, " tangent of ",
	`\log`, " log of ",
	`\ln`, " natural log of ",
)

var mathOperators = strings.NewReplacer(
	"=", " equals ",
	"+", " plus ",
	"-", " minus ",
	"<", " less than ",
	">", " greater than ",
)

// ToSpeech converts assistant markup (markdown with LaTeX math) into plain text a voice can read aloud.
// Math spans become spoken words, markdown decoration is dropped, code blocks and images are removed,
// and whitespace is collapsed. Malformed markup is left in place as literally as possible.
//
// The result is a fixed point: ToSpeech(ToSpeech(s)) == ToSpeech(s) for every s.
func ToSpeech(text string) string {
	out := normalizeOnce(text)
	for {
		// After the first pass no math delimiters remain, so later passes only delete markup and
		// the text shrinks on every change.
		next := normalizeOnce(out)
		if next == out {
			return out
		}
		out = next
	}
}

func normalizeOnce(text string) string {
	result := blockMathRe.ReplaceAllStringFunc(text, func(span string) string {
		return " " + spokenMath(blockMathRe.FindStringSubmatch(span)[1]) + " "
	})
	result = inlineMathRe.ReplaceAllStringFunc(result, func(span string) string {
		return " " + spokenMath(inlineMathRe.FindStringSubmatch(span)[1]) + " "
	})

	result = mathMarkupRe.ReplaceAllString(result, "")

	result = fencedCodeRe.ReplaceAllString(result, " ")
	result = imageRe.ReplaceAllString(result, "")
	result = linkRe.ReplaceAllString(result, "$1")
	result = boldRe.ReplaceAllString(result, "$1")
	result = italicRe.ReplaceAllString(result, "$1")
	result = inlineCodeRe.ReplaceAllString(result, "$1")
	result = headerRe.ReplaceAllString(result, "")

	return collapse(result)
}

// spokenMath converts the content of a single math span.
func spokenMath(latex string) string {
	result := strings.TrimSpace(latex)

	result = fracRe.ReplaceAllString(result, "$1 over $2")
	result = nthRootRe.ReplaceAllString(result, "${1}th root of $2")
	result = sqrtBracedRe.ReplaceAllString(result, "square root of $1")
	result = sqrtBareRe.ReplaceAllString(result, "square root of $1")

	result = powBracedRe.ReplaceAllStringFunc(result, func(m string) string {
		sub := powBracedRe.FindStringSubmatch(m)
		return power(sub[1], sub[2])
	})
	result = powDigitsRe.ReplaceAllStringFunc(result, func(m string) string {
		sub := powDigitsRe.FindStringSubmatch(m)
		return power(sub[1], sub[2])
	})
	result = powWordRe.ReplaceAllString(result, "$1 to the power of $2")

	result = subBracedRe.ReplaceAllString(result, "$1 sub $2")
	result = subWordRe.ReplaceAllString(result, "$1 sub $2")

	result = mathWords.Replace(result)
	result = mathOperators.Replace(result)

	result = mathMarkupRe.ReplaceAllString(result, "")
	return collapse(result)
}

func power(base, exp string) string {
	switch strings.TrimSpace(exp) {
	case "2":
		return base + " squared"
	case "3":
		return base + " cubed"
	default:
		return base + " to the power of " + exp
	}
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
