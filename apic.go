package main

// LocalAPIC drives this core's local interrupt controller. It shares no
// state or lock with the 8259 pair.
type LocalAPIC struct {
	cpu  *CPU
	base PhysAddr
}

func NewLocalAPIC(cpu *CPU) *LocalAPIC {
	return &LocalAPIC{cpu: cpu, base: lapicBase}
}

func (a *LocalAPIC) read(reg uint32) uint32     { return a.cpu.read32(a.base + PhysAddr(reg)) }
func (a *LocalAPIC) write(reg uint32, v uint32) { a.cpu.write32(a.base+PhysAddr(reg), v) }

// Enable software-enables the controller with spurious vector 0xff.
func (a *LocalAPIC) Enable() {
	a.write(lapicSVR, a.read(lapicSVR)|svrEnable|0xff)
}

// StartTimer arms a periodic timer delivering v.
func (a *LocalAPIC) StartTimer(v Vector, initialCount uint32) {
	a.write(lapicDivide, 0x3) // divide by 16
	a.write(lapicLVTTimer, uint32(v)|lvtTimerPeriod)
	a.write(lapicInitialCount, initialCount)
}

// EndOfInterrupt acknowledges the interrupt in service.
func (a *LocalAPIC) EndOfInterrupt() {
	a.write(lapicEOI, 0)
}
