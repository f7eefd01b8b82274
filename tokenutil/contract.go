package tokenutil

import (
	"regexp"
	"strings"
)

var (
	evmPattern      = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)
	solanaPattern   = regexp.MustCompile(`[1-9A-HJ-NP-Za-km-z]{32,44}`)
	capitalizedWord = regexp.MustCompile(`^[A-Z][a-z]+$`)
	lowercaseWord   = regexp.MustCompile(`^[a-z]+$`)
)

type Contracts struct {
	EVM    []string
	Solana []string
}

// First returns the first EVM address, else the first Solana address, else "".
func (c Contracts) First() string {
	if len(c.EVM) > 0 {
		return c.EVM[0]
	}
	if len(c.Solana) > 0 {
		return c.Solana[0]
	}
	return ""
}

// ExtractContracts finds contract addresses in free text.
func ExtractContracts(text string) Contracts {
	out := Contracts{EVM: evmPattern.FindAllString(text, -1)}
	for _, m := range solanaPattern.FindAllString(text, -1) {
		if capitalizedWord.MatchString(m) || lowercaseWord.MatchString(m) {
			continue
		}
		out.Solana = append(out.Solana, m)
	}
	return out
}

// GuessNetwork infers the chain from the address shape.
func GuessNetwork(address string) string {
	if strings.HasPrefix(address, "0x") && len(address) == 42 {
		return "eth"
	}
	if n := len(address); n >= 32 && n <= 44 {
		return "solana"
	}
	return "eth"
}

var apiNetworks = map[string]string{
	"ethereum": "eth",
}

// APINetwork maps our network names to the identifiers the price APIs use.
func APINetwork(network string) string {
	n := strings.ToLower(strings.TrimSpace(network))
	if mapped, ok := apiNetworks[n]; ok {
		return mapped
	}
	return n
}
