package codec

import "math/big"

// BigIntToBytes returns the minimal big-endian two's complement form of
// i. Zero encodes as a single 0x00 byte.
func BigIntToBytes(i *big.Int) []byte {
	if i == nil || i.Sign() == 0 {
		return []byte{0}
	}
	if i.Sign() > 0 {
		buf := make([]byte, i.BitLen()/8+1)
		i.FillBytes(buf)
		return buf
	}
	// -i-1 is non-negative and shares the magnitude bits of i.
	m := new(big.Int).Neg(i)
	m.Sub(m, big.NewInt(1))
	n := m.BitLen()/8 + 1
	v := new(big.Int).Lsh(big.NewInt(1), uint(n*8))
	v.Add(v, i)
	buf := make([]byte, n)
	v.FillBytes(buf)
	return buf
}

// BigIntFromBytes decodes big-endian two's complement bytes. An empty
// slice decodes as zero.
func BigIntFromBytes(b []byte) *big.Int {
	v := new(big.Int)
	if len(b) == 0 {
		return v
	}
	v.SetBytes(b)
	if b[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}
	return v
}

// Int64ToBytes is BigIntToBytes for int64.
func Int64ToBytes(v int64) []byte {
	return BigIntToBytes(big.NewInt(v))
}
