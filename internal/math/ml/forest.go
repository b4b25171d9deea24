package ml

import (
	"encoding/json"
	"fmt"
	"math"

	rmath "github.com/drakos74/asthma-risk/internal/math"
	randomforest "github.com/malaschitz/randomForest"
	"github.com/rs/zerolog/log"
)

// agreement is the tolerance between the forest votes and the converted ensemble.
const agreement = 1e-9

// Forest is a random forest classifier.
type Forest struct {
	params   Params
	trees    int
	classes  int
	native   bool
	forest   *randomforest.Forest
	ensemble *Ensemble
}

// NewForest creates a new random forest.
// Recognised params are trees, max_depth and leaf_size, 0 keeps the library default.
func NewForest(params Params) *Forest {
	return &Forest{
		params: params,
		trees:  params.Int("trees", 100),
	}
}

func (rf *Forest) Fit(x [][]float64, y []int, classes int) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("invalid training data: x=%d y=%d", len(x), len(y))
	}
	if rf.trees <= 0 {
		return fmt.Errorf("invalid number of trees: %d", rf.trees)
	}
	forest := &randomforest.Forest{
		Data: randomforest.ForestData{
			X:     x,
			Class: y,
		},
		MaxDepth: rf.params.Int("max_depth", 0),
		LeafSize: rf.params.Int("leaf_size", 0),
	}
	forest.Train(rf.trees)
	// the training set is not needed for voting
	forest.Data = randomforest.ForestData{}

	rf.forest = forest
	rf.classes = classes
	rf.ensemble = rf.convert(x)
	rf.native = rf.verify(x)
	if !rf.native {
		log.Warn().
			Int("trees", len(forest.Trees)).
			Msg("forest structure does not reproduce the votes, tree attribution disabled")
	}
	return nil
}

func (rf *Forest) Scores(x []float64) []float64 {
	votes := rf.forest.Vote(x)
	scores := make([]float64, rf.classes)
	copy(scores, votes)
	return rmath.Normalize(scores)
}

func (rf *Forest) Capabilities() Capabilities {
	return Capabilities{
		Probabilities:     true,
		NativeAttribution: rf.native,
	}
}

func (rf *Forest) Ensemble() *Ensemble {
	if !rf.native {
		return nil
	}
	return rf.ensemble
}

func (rf *Forest) Importance() []float64 {
	if rf.forest == nil {
		return nil
	}
	return rf.forest.FeatureImportance
}

// convert maps the forest branches to the ensemble representation
// and accumulates the training cover of every node.
func (rf *Forest) convert(x [][]float64) *Ensemble {
	trees := make([]Tree, len(rf.forest.Trees))
	for i := range rf.forest.Trees {
		root := branchToNode(&rf.forest.Trees[i].Root, rf.classes)
		for _, row := range x {
			node := root
			for {
				node.Cover++
				if node.IsLeaf() {
					break
				}
				node = node.Next(row)
			}
		}
		trees[i] = Tree{Root: root, Output: -1}
	}
	scale := 0.0
	if len(trees) > 0 {
		scale = 1 / float64(len(trees))
	}
	return &Ensemble{
		Outputs: rf.classes,
		Base:    make([]float64, rf.classes),
		Scale:   scale,
		Trees:   trees,
	}
}

func branchToNode(b *randomforest.Branch, classes int) *Node {
	if b.IsLeaf || b.Branch0 == nil || b.Branch1 == nil {
		value := make([]float64, classes)
		copy(value, b.LeafValue)
		return &Node{Value: rmath.Normalize(value)}
	}
	return &Node{
		Feature:   b.Attribute,
		Threshold: b.Value,
		Left:      branchToNode(b.Branch0, classes),
		Right:     branchToNode(b.Branch1, classes),
	}
}

// verify checks the converted ensemble against the library votes on the given rows.
func (rf *Forest) verify(x [][]float64) bool {
	if len(rf.ensemble.Trees) == 0 {
		return false
	}
	for _, row := range x {
		votes := rf.Scores(row)
		raw := rmath.Normalize(rf.ensemble.Raw(row))
		for k := range votes {
			if math.Abs(votes[k]-raw[k]) > agreement {
				return false
			}
		}
	}
	return true
}

type forestJSON struct {
	Params   Params               `json:"params"`
	Classes  int                  `json:"classes"`
	Native   bool                 `json:"native"`
	Forest   *randomforest.Forest `json:"forest"`
	Ensemble *Ensemble            `json:"ensemble,omitempty"`
}

func (rf *Forest) MarshalJSON() ([]byte, error) {
	if rf.forest == nil {
		return nil, fmt.Errorf("forest is not trained")
	}
	return json.Marshal(forestJSON{
		Params:   rf.params,
		Classes:  rf.classes,
		Native:   rf.native,
		Forest:   rf.forest,
		Ensemble: rf.ensemble,
	})
}

func (rf *Forest) UnmarshalJSON(b []byte) error {
	var fj forestJSON
	if err := json.Unmarshal(b, &fj); err != nil {
		return fmt.Errorf("could not decode forest: %w", err)
	}
	if fj.Forest == nil {
		return fmt.Errorf("missing forest")
	}
	rf.params = fj.Params
	rf.trees = fj.Params.Int("trees", len(fj.Forest.Trees))
	rf.classes = fj.Classes
	rf.native = fj.Native && fj.Ensemble != nil
	rf.forest = fj.Forest
	rf.ensemble = fj.Ensemble
	return nil
}
