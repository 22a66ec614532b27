// Package names generates human-readable node ids for latticed instances
// started without --name. Names are "adjective-noun" pairs drawn from
// crystallography, topology and network vocabularies, which keeps node ids
// short enough to read in logs and the leader board.
//
// Examples: "cubic-vertex", "stable-quorum", "twinned-beacon"
package names

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var adjectives = []string{
	// Crystal systems and habits
	"cubic", "hexagonal", "tetragonal", "trigonal", "monoclinic",
	"triclinic", "orthorhombic", "prismatic", "acicular", "tabular",
	"bladed", "columnar", "dendritic", "drusy", "fibrous",
	"foliated", "granular", "massive", "radiating", "twinned",

	// Topology and order
	"adjacent", "bounded", "compact", "connected", "dense",
	"discrete", "dual", "finite", "nested", "ordered",
	"periodic", "regular", "symmetric", "transitive", "woven",

	// Temperament
	"calm", "steady", "patient", "stable", "vigilant",
	"quiet", "brisk", "nimble", "stoic", "tireless",
	"loyal", "keen", "lucid", "bold", "modest",
}

var nouns = []string{
	// Lattice and crystal structure
	"basis", "cell", "facet", "grain", "node",
	"plane", "point", "site", "vertex", "edge",
	"axis", "bond", "cleavage", "domain", "motif",

	// Minerals
	"apatite", "beryl", "calcite", "corundum", "feldspar",
	"fluorite", "garnet", "gypsum", "halite", "pyrite",
	"quartz", "spinel", "topaz", "tourmaline", "zircon",

	// Cluster roles
	"anchor", "beacon", "custodian", "herald", "keeper",
	"lantern", "ledger", "quorum", "relay", "sentinel",
	"steward", "tally", "warden", "witness", "courier",
}

// Generate returns a random "adjective-noun" name.
func Generate() string {
	return fmt.Sprintf("%s-%s", adjectives[randomIndex(len(adjectives))], nouns[randomIndex(len(nouns))])
}

// randomIndex returns a uniform index in [0, max) from crypto/rand, or 0 if
// the random source fails.
func randomIndex(max int) int {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}

// GenerateMany returns count names, distinct unless the vocabulary runs out.
// Each slot gives up after 100 collisions and keeps the last draw.
func GenerateMany(count int) []string {
	if count <= 0 {
		return []string{}
	}

	out := make([]string, count)
	used := make(map[string]bool, count)
	for i := range out {
		name := Generate()
		for attempts := 0; used[name] && attempts < 100; attempts++ {
			name = Generate()
		}
		used[name] = true
		out[i] = name
	}
	return out
}
