package keyValStore

import "encoding/binary"

const keySize = 8

func EncodeKey(node uint64) []byte {
	key := make([]byte, keySize)
	binary.BigEndian.PutUint64(key, node)
	return key
}

func DecodeKey(key []byte) (uint64, bool) {
	if len(key) != keySize {
		return 0, false
	}
	return binary.BigEndian.Uint64(key), true
}
