package blockchain

import (
	"slices"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
)

const noParent = -1

type indexNode struct {
	id     model.ObjectID
	parent int
	height uint64
}

// blockIndex is an append-only table of valid blocks. A node's parent always
// has a lower position, so walking parents terminates at genesis.
type blockIndex struct {
	nodes []indexNode
	byID  map[model.ObjectID]int
}

func newBlockIndex() *blockIndex {
	return &blockIndex{
		byID: make(map[model.ObjectID]int),
	}
}

func (idx *blockIndex) lookup(id model.ObjectID) (int, bool) {
	pos, ok := idx.byID[id]
	return pos, ok
}

// add appends a block whose parent is already indexed and returns its position.
func (idx *blockIndex) add(id model.ObjectID, parentID *model.ObjectID, height uint64) (int, error) {
	if pos, ok := idx.byID[id]; ok {
		return pos, nil
	}

	parent := noParent

	if parentID != nil {
		pos, ok := idx.byID[*parentID]
		if !ok {
			return 0, errors.NewProcessingError("parent %s of block %s is not indexed", *parentID, id)
		}

		if idx.nodes[pos].height+1 != height {
			return 0, errors.NewProcessingError("block %s at height %d does not follow its parent at height %d", id, height, idx.nodes[pos].height)
		}

		parent = pos
	}

	idx.nodes = append(idx.nodes, indexNode{id: id, parent: parent, height: height})
	idx.byID[id] = len(idx.nodes) - 1

	return len(idx.nodes) - 1, nil
}

// forks returns the lowest common ancestor of the blocks at a and b, the
// blocks after it leading to a and the blocks after it leading to b, both
// ordered from the ancestor forward.
func (idx *blockIndex) forks(a, b int) (lca int, shortFork, longFork []int, err error) {
	for a != noParent && b != noParent && idx.nodes[a].height > idx.nodes[b].height {
		shortFork = append(shortFork, a)
		a = idx.nodes[a].parent
	}

	for a != noParent && b != noParent && idx.nodes[b].height > idx.nodes[a].height {
		longFork = append(longFork, b)
		b = idx.nodes[b].parent
	}

	for a != b {
		if a == noParent || b == noParent {
			return 0, nil, nil, errors.NewProcessingError("blocks do not share an ancestor")
		}

		shortFork = append(shortFork, a)
		longFork = append(longFork, b)

		a = idx.nodes[a].parent
		b = idx.nodes[b].parent
	}

	if a == noParent {
		return 0, nil, nil, errors.NewProcessingError("blocks do not share an ancestor")
	}

	slices.Reverse(shortFork)
	slices.Reverse(longFork)

	return a, shortFork, longFork, nil
}

func (idx *blockIndex) ids(positions []int) []model.ObjectID {
	ids := make([]model.ObjectID, len(positions))
	for i, pos := range positions {
		ids[i] = idx.nodes[pos].id
	}

	return ids
}
