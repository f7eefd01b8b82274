package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CallAnalysis is the scored result for one call.
type CallAnalysis struct {
	Score            float64 `json:"score"`
	TokenType        string  `json:"token_type"`
	LegitimacyFactor string  `json:"legitimacy_factor"`
	Reasoning        string  `json:"reasoning"`
}

var (
	scoreLine      = regexp.MustCompile(`(?i)Score:\s*(\d+(?:\.\d+)?)`)
	tokenTypeLine  = regexp.MustCompile(`(?i)Token Type:\s*(Meme|Utility|Hybrid)`)
	legitimacyLine = regexp.MustCompile(`(?i)Legitimacy Factor:\s*(High|Medium|Low)`)
	jsonObject     = regexp.MustCompile(`(?s)\{.*\}`)
	jsonArray      = regexp.MustCompile(`(?s)\[.*\]`)
	xScore         = regexp.MustCompile(`(?i)score[:\s]+(\d+)`)
)

const (
	DefaultScore      = 5
	DefaultLegitimacy = "Medium"
)

// ParseCallText reads the line-oriented reanalysis format
// (Score: / Token Type: / Legitimacy Factor:), defaulting missing fields.
func ParseCallText(text string) CallAnalysis {
	out := CallAnalysis{
		Score:            DefaultScore,
		TokenType:        "meme",
		LegitimacyFactor: DefaultLegitimacy,
		Reasoning:        text,
	}
	if m := scoreLine.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			out.Score = v
		}
	}
	if m := tokenTypeLine.FindStringSubmatch(text); m != nil {
		out.TokenType = strings.ToLower(m[1])
	}
	if m := legitimacyLine.FindStringSubmatch(text); m != nil {
		out.LegitimacyFactor = capitalize(m[1])
	}
	return out
}

// ParseCallJSON extracts the first JSON object in text. Models often wrap
// JSON in prose or code fences.
func ParseCallJSON(text string) (CallAnalysis, error) {
	raw := jsonObject.FindString(text)
	if raw == "" {
		return CallAnalysis{}, fmt.Errorf("no JSON object in response")
	}
	var out CallAnalysis
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return CallAnalysis{}, fmt.Errorf("invalid analysis JSON: %w", err)
	}
	if out.Score == 0 {
		out.Score = DefaultScore
	}
	if out.LegitimacyFactor == "" {
		out.LegitimacyFactor = DefaultLegitimacy
	}
	out.TokenType = strings.ToLower(out.TokenType)
	return out, nil
}

// ParseBatch reads a JSON array of analyses and requires exactly want entries.
func ParseBatch(text string, want int) ([]CallAnalysis, error) {
	raw := jsonArray.FindString(text)
	if raw == "" {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	var out []CallAnalysis
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("invalid batch JSON: %w", err)
	}
	if len(out) != want {
		return nil, fmt.Errorf("expected %d results, got %d", want, len(out))
	}
	for i := range out {
		out[i].TokenType = strings.ToLower(out[i].TokenType)
	}
	return out, nil
}

// XAnalysis is the parsed tweet review.
type XAnalysis struct {
	Score           float64  `json:"score"`
	PositiveSignals []string `json:"positive_signals"`
	RedFlags        []string `json:"red_flags"`
	Assessment      string   `json:"assessment"`
	TokenType       string   `json:"token_type,omitempty"`
	Raw             string   `json:"raw_analysis,omitempty"`
}

const (
	maxPositiveSignals = 3
	maxRedFlags        = 2
)

// ParseX walks the sectioned X review: a score, bullet lists of positive
// signals and red flags, and a one-line assessment.
func ParseX(text string, tweetCount int) XAnalysis {
	out := XAnalysis{Score: 1, Raw: text}
	if m := xScore.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			out.Score = float64(v)
		}
	}
	if m := tokenTypeLine.FindStringSubmatch(text); m != nil {
		out.TokenType = strings.ToLower(m[1])
	}

	section := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "positive signal") || strings.Contains(lower, "key positive"):
			section = "positive"
		case strings.Contains(lower, "red flag") || strings.Contains(lower, "concern"):
			section = "red"
		case strings.Contains(lower, "assessment") || strings.Contains(lower, "overall"):
			section = "assessment"
			if i := strings.Index(line, ":"); i >= 0 && out.Assessment == "" {
				out.Assessment = strings.TrimSpace(line[i+1:])
			}
		case strings.HasPrefix(line, "•") || strings.HasPrefix(line, "-"):
			item := strings.TrimSpace(strings.TrimLeft(line, "•- "))
			if section == "positive" && len(out.PositiveSignals) < maxPositiveSignals {
				out.PositiveSignals = append(out.PositiveSignals, item)
			} else if section == "red" && len(out.RedFlags) < maxRedFlags {
				out.RedFlags = append(out.RedFlags, item)
			}
		case section == "assessment" && out.Assessment == "":
			out.Assessment = line
		}
	}

	if len(out.PositiveSignals) == 0 {
		out.PositiveSignals = []string{"Analysis complete"}
	}
	if len(out.RedFlags) == 0 {
		out.RedFlags = []string{"None identified"}
	}
	if out.Assessment == "" {
		out.Assessment = fmt.Sprintf("Scored %d/10 based on %d tweets", int(out.Score), tweetCount)
	}
	return out
}

// NoTweetsAnalysis is recorded when a contract has no X activity at all.
func NoTweetsAnalysis() XAnalysis {
	return XAnalysis{
		Score:           1,
		PositiveSignals: []string{"No social media presence found"},
		RedFlags:        []string{"Zero Twitter activity for contract address"},
		Assessment:      "No community engagement detected",
	}
}

// Summary renders signals and flags as the bullet text stored on the call.
func (x XAnalysis) Summary() string {
	lines := make([]string, 0, len(x.PositiveSignals)+len(x.RedFlags)+1)
	for _, s := range x.PositiveSignals {
		lines = append(lines, "• "+s)
	}
	if len(x.RedFlags) > 0 {
		lines = append(lines, "\nRED FLAGS:")
	}
	for _, r := range x.RedFlags {
		lines = append(lines, "• "+r)
	}
	return strings.Join(lines, "\n")
}

// WebsiteAnalysis is the stage-1 website score.
type WebsiteAnalysis struct {
	Score     float64 `json:"score"`
	Tier      string  `json:"tier"`
	Reasoning string  `json:"reasoning"`
}

func ParseWebsite(text string) (WebsiteAnalysis, error) {
	raw := jsonObject.FindString(text)
	if raw == "" {
		return WebsiteAnalysis{}, fmt.Errorf("no JSON object in response")
	}
	var out WebsiteAnalysis
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return WebsiteAnalysis{}, fmt.Errorf("invalid website JSON: %w", err)
	}
	out.Tier = strings.ToUpper(out.Tier)
	return out, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}

// XRescore is the parsed result of rescoring stored tweets.
type XRescore struct {
	Score            float64
	TokenType        string
	LegitimacyFactor string
	BestTweet        string
	Reasoning        string
}

var (
	xTokenType   = regexp.MustCompile(`(?i)token\s*type[:\s]+(meme|utility|hybrid)`)
	xLegitimacy  = regexp.MustCompile(`(?i)legitimacy\s*factor[:\s]+(low|medium|high)`)
	xBestTweet   = regexp.MustCompile(`(?i)best\s*tweet[:\s]*([^\n]+)`)
	xReasoning   = regexp.MustCompile(`(?i)reasoning[:\s]*([^\n]+)\s*$`)
	observations = regexp.MustCompile(`(?i)\s*key\s*observations.*$`)
)

// ParseXRescore reads the Score / Token Type / Legitimacy Factor / Best
// Tweet / Reasoning layout. Missing fields default to score 1, meme, Low and
// the full text as reasoning.
func ParseXRescore(text string) XRescore {
	out := XRescore{Score: 1, TokenType: "meme", LegitimacyFactor: "Low", Reasoning: text}
	if m := xScore.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			out.Score = float64(v)
		}
	}
	if m := xTokenType.FindStringSubmatch(text); m != nil {
		out.TokenType = strings.ToLower(m[1])
	}
	if m := xLegitimacy.FindStringSubmatch(text); m != nil {
		out.LegitimacyFactor = capitalize(m[1])
	}
	if m := xBestTweet.FindStringSubmatch(text); m != nil {
		out.BestTweet = strings.TrimSpace(observations.ReplaceAllString(m[1], ""))
	}
	if m := xReasoning.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		out.Reasoning = strings.TrimSpace(m[1])
	}
	return out
}
