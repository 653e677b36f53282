package callconv

import "swc/internal/micro"

// sysV implements the System V AMD64 ABI (Linux/macOS/BSD "C" convention).
type sysV struct{}

// C is the System V AMD64 calling convention.
var C CallConv = sysV{}

func (sysV) Kind() micro.CallConvKind { return micro.CallConvC }

func (sysV) IntArgRegs() []micro.MicroReg {
	return []micro.MicroReg{
		micro.IntPhysReg(micro.RDI), micro.IntPhysReg(micro.RSI), micro.IntPhysReg(micro.RDX),
		micro.IntPhysReg(micro.RCX), micro.IntPhysReg(micro.R8), micro.IntPhysReg(micro.R9),
	}
}

func (sysV) FloatArgRegs() []micro.MicroReg {
	regs := make([]micro.MicroReg, 8)
	for i := range regs {
		regs[i] = micro.FloatPhysReg(uint32(i))
	}
	return regs
}

func (sysV) IntReturn() micro.MicroReg   { return micro.IntPhysReg(micro.RAX) }
func (sysV) FloatReturn() micro.MicroReg { return micro.FloatPhysReg(0) }

func (sysV) IntPersistentRegs() []micro.MicroReg {
	return []micro.MicroReg{
		micro.IntPhysReg(micro.RBX), micro.IntPhysReg(micro.R12), micro.IntPhysReg(micro.R13),
		micro.IntPhysReg(micro.R14), micro.IntPhysReg(micro.R15),
	}
}

// FloatPersistentRegs is empty: SysV XMM registers are all caller-saved.
func (sysV) FloatPersistentRegs() []micro.MicroReg { return nil }

func (sysV) StackPointer() micro.MicroReg { return micro.IntPhysReg(micro.RSP) }
func (sysV) FramePointer() micro.MicroReg { return micro.IntPhysReg(micro.RBP) }

func (sysV) StackAlignment() int64   { return 16 }
func (sysV) StackSlotSize() int64    { return 8 }
func (sysV) StackShadowSpace() int64 { return 0 }

func (sysV) ClassifyStructReturnPassing(size int64) StructReturnPassing {
	if size <= 16 {
		return ByValue
	}
	return ByReference
}
