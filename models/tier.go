package models

import "strings"

const (
	TierAlpha = "ALPHA"
	TierSolid = "SOLID"
	TierBasic = "BASIC"
	TierTrash = "TRASH"
)

const (
	TokenTypeMeme    = "meme"
	TokenTypeUtility = "utility"
	TokenTypeHybrid  = "hybrid"
)

// TierForScore buckets a 1-10 analysis score.
func TierForScore(score float64) string {
	switch {
	case score >= 8:
		return TierAlpha
	case score >= 6:
		return TierSolid
	case score >= 4:
		return TierBasic
	default:
		return TierTrash
	}
}

// NormalizeTokenType lowercases a model's Meme/Utility/Hybrid label and
// returns "" for anything else.
func NormalizeTokenType(s string) string {
	switch t := strings.ToLower(strings.TrimSpace(s)); t {
	case TokenTypeMeme, TokenTypeUtility, TokenTypeHybrid:
		return t
	default:
		return ""
	}
}

// CombineTokenTypes merges the call-analysis and X-analysis token types.
// A missing side defers to the other; disagreement yields hybrid.
func CombineTokenTypes(callType, xType string) string {
	callType = NormalizeTokenType(callType)
	xType = NormalizeTokenType(xType)

	switch {
	case xType == "":
		if callType == "" {
			return TokenTypeMeme
		}
		return callType
	case callType == "":
		return xType
	case callType == xType:
		return callType
	default:
		return TokenTypeHybrid
	}
}
