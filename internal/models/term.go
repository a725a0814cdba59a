package models

// Term is a word bank entry
type Term struct {
	Word        string `yaml:"term" json:"term"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category" json:"category"`
	Difficulty  string `yaml:"difficulty" json:"difficulty"`
	Hint        string `yaml:"hint" json:"hint"`
}

// Topics is the curated list of puzzle topics offered to players
var Topics = []string{
	"Proof of History",
	"Solana Programs",
	"Solana Architecture",
	"Solana Tokenomics",
	"Solana Consensus",
	"Solana DeFi",
	"Solana NFTs",
	"Solana Security",
	"Solana Scalability",
	"Solana Development",
}
