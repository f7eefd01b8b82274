package ai

import (
	"fmt"
	"strings"
)

const scoringGuide = `Scoring Criteria:
- 8-10: ALPHA tier - High potential, legitimate project, strong fundamentals
- 6-7: SOLID tier - Good potential, reasonable risk
- 4-5: BASIC tier - Average, higher risk
- 1-3: TRASH tier - Likely scam or very high risk`

// CallInput is what the prompts need to know about a call.
type CallInput struct {
	Ticker    string
	Contract  string
	Network   string
	Group     string
	Message   string
	Timestamp string
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func CallPrompt(in CallInput) string {
	return fmt.Sprintf(`Analyze this cryptocurrency call and provide a score from 1-10 based on potential value and legitimacy.

Call Data:
- Token: %s
- Group: %s
- Message: %s
- Timestamp: %s

%s

Also classify the token type as meme or utility.

Response Format (JSON):
{
  "score": <number 1-10>,
  "token_type": "<meme|utility>",
  "legitimacy_factor": "<High|Medium|Low>",
  "reasoning": "<brief explanation>"
}

Respond with JSON only.`,
		orDefault(in.Ticker, "Unknown"), orDefault(in.Group, "Unknown"),
		orDefault(in.Message, "No message"), orDefault(in.Timestamp, "Unknown"), scoringGuide)
}

const ReanalysisSystem = `You are an expert cryptocurrency analyst. Analyze the following crypto call and provide a score from 1-10 based on potential value and legitimacy.

` + scoringGuide + `

Consider:
- Is there a clear contract address?
- Does the message contain substantial information?
- Group reputation (if known)
- Red flags like "pump", "moon", excessive emojis
- Specific details vs vague hype
- Technical details and utility

Also classify the token type:
- Meme: Community-driven, humor/viral focus, dog/cat/pepe themes, no serious utility claims
- Utility: Real use case, DeFi, infrastructure, gaming, AI tools, solving actual problems
- Hybrid: Combines meme appeal with actual utility features

Response format:
Score: [1-10]
Token Type: [Meme/Utility/Hybrid]
Legitimacy Factor: [High/Medium/Low]
Key Observations: [2-3 bullet points]
Reasoning: [Brief explanation of score]`

const ReanalysisPromptID = "REANALYSIS_V1"

func ReanalysisPrompt(in CallInput) string {
	return fmt.Sprintf(`Analyze this crypto call:

Ticker: %s
Contract: %s
Network: %s
Message: %s
Call Timestamp: %s
Group: %s`,
		orDefault(in.Ticker, "Unknown"), orDefault(in.Contract, "No contract"),
		orDefault(in.Network, "Unknown"), orDefault(in.Message, "No message"),
		orDefault(in.Timestamp, "Unknown"), orDefault(in.Group, "Unknown"))
}

func BatchPrompt(calls []CallInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You are analyzing multiple cryptocurrency calls to assess the LEGITIMACY of each project. Analyze each call independently.

For each call, score based on legitimacy indicators:
- 8-10: Exceptional legitimacy or rare significance (verifiable high-profile backing, groundbreaking innovation)
- 6-7: Strong legitimacy (professional operation, transparent team)
- 4-5: Moderate legitimacy (some credible elements)
- 1-3: Low/No legitimacy (minimal verifiable information)

Be especially careful with tokens named after famous meme coins. Many are imposters riding on the original's success.

Token types:
- Meme: Community-driven, humor/viral focus
- Utility: Real use case, DeFi, infrastructure, gaming, AI tools

Analyze these %d calls:
`, len(calls))

	for i, c := range calls {
		fmt.Fprintf(&sb, `
Call %d:
- Token: %s
- Contract: %s
- Network: %s
- Group: %s
- Message: %s
- Timestamp: %s
`, i+1, orDefault(c.Ticker, "Unknown"), orDefault(c.Contract, "No contract"),
			orDefault(c.Network, "unknown"), orDefault(c.Group, "Unknown"),
			orDefault(c.Message, "No message"), orDefault(c.Timestamp, "Unknown"))
	}

	fmt.Fprintf(&sb, `
Respond with a JSON array containing exactly %d objects in order:
[
  {
    "score": <number 1-10>,
    "token_type": "<meme|utility>",
    "legitimacy_factor": "<High|Medium|Low>",
    "reasoning": "<explain legitimacy indicators>"
  }
]

Return ONLY the JSON array, no other text.`, len(calls))
	return sb.String()
}

func BatchPromptLabel(n int) string {
	return fmt.Sprintf("Batch analysis of %d calls", n)
}

const XSystem = `You are an expert crypto analyst reviewing Twitter/X posts about a cryptocurrency token.
Analyze the provided tweets and score the token's social media presence from 1-10.

SCORING CRITERIA:
- Community engagement and sentiment (positive discussions, genuine interest)
- Team/developer activity and transparency
- Partnership announcements or notable endorsements
- Red flags (bot activity, pump schemes, fake hype)
- Overall legitimacy and long-term potential based on social signals

SCORE GUIDE:
1-3: TRASH - Obvious scam, bot activity, pump scheme, no real community
4-5: BASIC - Limited activity, unclear value, some red flags
6-7: SOLID - Good community, active development, some positive signals
8-10: ALPHA - Strong community, verified partnerships, high-quality engagement

Provide:
1. A score from 1-10
2. Token Type: Meme, Utility or Hybrid
3. Key positive signals (2-3 bullet points, max 15 words each)
4. Red flags or concerns (1-2 bullet points, max 10 words each)
5. Brief overall assessment (1 sentence, max 20 words)

Be direct and factual.`

const XPromptID = "X_ANALYSIS_V1"

func XPrompt(ticker, contract string, tweets []string) string {
	parts := make([]string, len(tweets))
	for i, t := range tweets {
		parts[i] = fmt.Sprintf("Tweet %d: %s", i+1, t)
	}
	return fmt.Sprintf("Analyze these tweets about %s (contract: %s):\n\n%s", ticker, contract, strings.Join(parts, "\n\n"))
}

const WebsiteSystem = `You are screening crypto project websites. Score the site's legitimacy from 1-10 based on the extracted text:
team transparency, concrete product or utility, documentation, roadmap substance, and signs of a template or copy-paste site.
Thin or placeholder content must score 3 or lower.

Respond with JSON only:
{"score": <1-10>, "tier": "<ALPHA|SOLID|BASIC|TRASH>", "reasoning": "<two sentences>"}`

func WebsitePrompt(symbol, url, title, text string) string {
	const maxChars = 6000
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return fmt.Sprintf("Token: %s\nWebsite: %s\nTitle: %s\n\nExtracted text:\n%s", symbol, url, title, text)
}

const xRescoreGuide = `You are an expert crypto analyst evaluating Twitter/X social media data about cryptocurrency tokens.
You are analyzing historical tweets captured at the time of the original call.

Score the token's social media presence from 1-10 based on:
- Community engagement quality and authenticity
- Team/developer transparency and activity
- Legitimate partnerships or endorsements
- Technical discussions and development updates
- Warning signs (bot activity, pump rhetoric, fake hype)

SCORE GUIDE:
1-3: TRASH - Obvious scam, heavy bot activity, pump and dump rhetoric, no real community
4-5: BASIC - Limited genuine activity, some red flags, unclear value proposition
6-7: SOLID - Good community engagement, active development, some positive signals
8-10: ALPHA - Exceptional community, verified partnerships, strong development activity
`

// XReanalysisSystem rescores stored tweets for a single call.
const XReanalysisSystem = xRescoreGuide + `
Provide:
1. Score (1-10)
2. Legitimacy Factor: "Low", "Medium", or "High"
3. Best Tweet: The single most informative tweet (exact text)
4. Key Observations: 2-3 bullet points (max 20 words each)
5. Reasoning: Brief explanation of your score (2-3 sentences)`

// XBatchSystem is XReanalysisSystem plus a token type classification.
const XBatchSystem = xRescoreGuide + `
Provide:
1. Score (1-10)
2. Token Type: "meme", "utility", or "hybrid" based on social media presence
3. Legitimacy Factor: "Low", "Medium", or "High"
4. Best Tweet: The single most informative tweet (exact text)
5. Key Observations: 2-3 bullet points (max 20 words each)
6. Reasoning: Brief explanation of your score (2-3 sentences)

Meme: humor/viral focus, price speculation, animal themes.
Utility: technical discussion, real use cases, development updates, partnerships.
Hybrid: both meme culture and actual development.`

const (
	XReanalysisPromptID = "X_REANALYSIS_V1"
	XBatchPromptID      = "X_BATCH_ANALYSIS_V1"
	CallPromptID        = "CALL_ANALYSIS_V1"
)

// XRescorePrompt lists stored tweets for rescoring. capturedAt may be empty.
func XRescorePrompt(ticker, capturedAt string, tweets []string) string {
	parts := make([]string, len(tweets))
	for i, t := range tweets {
		parts[i] = fmt.Sprintf("Tweet %d: %s", i+1, t)
	}
	return fmt.Sprintf("Analyze these tweets about %s token (captured at %s):\n\n%s",
		orDefault(ticker, "Unknown"), orDefault(capturedAt, "unknown time"), strings.Join(parts, "\n"))
}
