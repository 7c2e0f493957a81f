package model

type Block struct {
	// PrevID is nil for the genesis block.
	PrevID  *ObjectID
	TxIDs   []ObjectID
	Nonce   string
	T       string
	Created int64
	Miner   *string
	Note    *string
}

func (b *Block) sealed() {}

func (b *Block) Type() string {
	return TypeBlock
}

func (b *Block) IsGenesis() bool {
	return b.PrevID == nil
}

func (b *Block) ID() ObjectID {
	return IDOf(b.Wire())
}

func (b *Block) Canonical() []byte {
	return mustCanonicalize(b.Wire())
}

// HasPoW reports whether the block id satisfies the block's own target.
func (b *Block) HasPoW() bool {
	return HasPoW(b.ID(), b.T)
}

func (b *Block) Wire() map[string]interface{} {
	txIDs := make([]interface{}, len(b.TxIDs))
	for i, id := range b.TxIDs {
		txIDs[i] = string(id)
	}

	var prevID interface{}
	if b.PrevID != nil {
		prevID = string(*b.PrevID)
	}

	m := map[string]interface{}{
		"type":    TypeBlock,
		"previd":  prevID,
		"txids":   txIDs,
		"nonce":   b.Nonce,
		"T":       b.T,
		"created": b.Created,
	}

	if b.Miner != nil {
		m["miner"] = *b.Miner
	}

	if b.Note != nil {
		m["note"] = *b.Note
	}

	return m
}

// MarshalJSON emits the canonical encoding.
func (b *Block) MarshalJSON() ([]byte, error) {
	return Canonicalize(b.Wire())
}

// Clone returns a deep copy, for callers that want to tweak a block without
// touching the original.
func (b *Block) Clone() *Block {
	c := *b

	if b.PrevID != nil {
		prev := *b.PrevID
		c.PrevID = &prev
	}

	c.TxIDs = append([]ObjectID(nil), b.TxIDs...)

	if b.Miner != nil {
		miner := *b.Miner
		c.Miner = &miner
	}

	if b.Note != nil {
		note := *b.Note
		c.Note = &note
	}

	return &c
}
