package amd64

import "encoding/binary"

// codeBuffer is the append-only byte sink every instruction's encoding
// writes into.
type codeBuffer struct {
	b []byte
}

func (c *codeBuffer) u8(v byte)     { c.b = append(c.b, v) }
func (c *codeBuffer) u16(v uint16)  { c.b = binary.LittleEndian.AppendUint16(c.b, v) }
func (c *codeBuffer) u32(v uint32)  { c.b = binary.LittleEndian.AppendUint32(c.b, v) }
func (c *codeBuffer) u64(v uint64)  { c.b = binary.LittleEndian.AppendUint64(c.b, v) }
func (c *codeBuffer) i32(v int32)   { c.u32(uint32(v)) }
func (c *codeBuffer) len() int      { return len(c.b) }
func (c *codeBuffer) bytes() []byte { return c.b }
