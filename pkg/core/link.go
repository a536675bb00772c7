package core

import (
	"encoding/hex"
	"fmt"

	"stronglink/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// Link 是指向另一个本地对象的引用
// CBOR 中编码为 Tag 42，内容是 0x00 前缀加原始摘要字节
type Link struct {
	Hash types.Hash
}

const linkTagNumber = 42

func NewLink(hash types.Hash) Link {
	return Link{Hash: hash}
}

func (l Link) MarshalCBOR() ([]byte, error) {
	raw, err := hex.DecodeString(l.Hash.String())
	if err != nil {
		return nil, fmt.Errorf("invalid hash format in link: %w", err)
	}
	return em.Marshal(cbor.Tag{
		Number:  linkTagNumber,
		Content: append([]byte{0x00}, raw...),
	})
}

func (l *Link) UnmarshalCBOR(data []byte) error {
	var tag cbor.Tag
	if err := dm.Unmarshal(data, &tag); err != nil {
		return err
	}
	if tag.Number != linkTagNumber {
		return fmt.Errorf("expected tag 42 for Link, got %d", tag.Number)
	}

	raw, ok := tag.Content.([]byte)
	if !ok {
		return fmt.Errorf("link content must be byte string")
	}
	if len(raw) < 1 || raw[0] != 0x00 {
		return fmt.Errorf("invalid link: missing 0x00 multibase prefix")
	}
	l.Hash = types.Hash(hex.EncodeToString(raw[1:]))
	return nil
}
