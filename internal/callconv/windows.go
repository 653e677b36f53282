package callconv

import "swc/internal/micro"

// windowsX64 implements the Microsoft x64 calling convention: four shared
// register slots (an argument is either in the Nth int reg or the Nth float
// reg, never both independently indexed), a mandatory 32-byte shadow space,
// and more callee-saved registers than SysV.
type windowsX64 struct{}

// WindowsX64 is the Microsoft x64 calling convention.
var WindowsX64 CallConv = windowsX64{}

func (windowsX64) Kind() micro.CallConvKind { return micro.CallConvWindowsX64 }

func (windowsX64) IntArgRegs() []micro.MicroReg {
	return []micro.MicroReg{
		micro.IntPhysReg(micro.RCX), micro.IntPhysReg(micro.RDX),
		micro.IntPhysReg(micro.R8), micro.IntPhysReg(micro.R9),
	}
}

func (windowsX64) FloatArgRegs() []micro.MicroReg {
	return []micro.MicroReg{
		micro.FloatPhysReg(0), micro.FloatPhysReg(1), micro.FloatPhysReg(2), micro.FloatPhysReg(3),
	}
}

func (windowsX64) IntReturn() micro.MicroReg   { return micro.IntPhysReg(micro.RAX) }
func (windowsX64) FloatReturn() micro.MicroReg { return micro.FloatPhysReg(0) }

func (windowsX64) IntPersistentRegs() []micro.MicroReg {
	return []micro.MicroReg{
		micro.IntPhysReg(micro.RBX), micro.IntPhysReg(micro.RBP), micro.IntPhysReg(micro.RDI),
		micro.IntPhysReg(micro.RSI), micro.IntPhysReg(micro.R12), micro.IntPhysReg(micro.R13),
		micro.IntPhysReg(micro.R14), micro.IntPhysReg(micro.R15),
	}
}

func (windowsX64) FloatPersistentRegs() []micro.MicroReg {
	regs := make([]micro.MicroReg, 0, 10)
	for i := uint32(6); i <= 15; i++ {
		regs = append(regs, micro.FloatPhysReg(i))
	}
	return regs
}

func (windowsX64) StackPointer() micro.MicroReg { return micro.IntPhysReg(micro.RSP) }
func (windowsX64) FramePointer() micro.MicroReg { return micro.IntPhysReg(micro.RBP) }

func (windowsX64) StackAlignment() int64   { return 16 }
func (windowsX64) StackSlotSize() int64    { return 8 }
func (windowsX64) StackShadowSpace() int64 { return 32 }

func (windowsX64) ClassifyStructReturnPassing(size int64) StructReturnPassing {
	switch size {
	case 1, 2, 4, 8:
		return ByValue
	default:
		return ByReference
	}
}

// Host is the calling convention CallConvHost resolves to. It is C on every
// platform; nothing in this package selects WindowsX64 for a Windows host.
var Host = C

// ByKind resolves a CallConvKind to its concrete CallConv, resolving Host to
// the package-level Host alias.
func ByKind(kind micro.CallConvKind) CallConv {
	switch kind {
	case micro.CallConvC:
		return C
	case micro.CallConvWindowsX64:
		return WindowsX64
	case micro.CallConvHost:
		return Host
	default:
		panic("BUG: unknown CallConvKind")
	}
}
