package training

import (
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit shuffles each class with the given seed and moves round(testSize*n)
// of it into the test set. Both returned index sets are sorted.
func StratifiedSplit(y []int, testSize float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))
	byClass := map[int][]int{}
	for i, v := range y {
		byClass[v] = append(byClass[v], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		k := int(math.Round(testSize * float64(len(idx))))
		if k >= len(idx) && len(idx) > 1 {
			k = len(idx) - 1
		}
		test = append(test, idx[:k]...)
		train = append(train, idx[k:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}
