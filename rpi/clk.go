package rpi

const (
	CORE_CLK_HZ  = 250000000 // VPU core clock, which the GPIO block runs off
	OSC_FREQ     = 19200000  // crystal frequency
	OSC_FREQ_PI4 = 54000000  // Pi 4 crystal frequency
)

// OscFreq returns the crystal frequency of the board in Hz.
func (rp *RPi) OscFreq() uint32 {
	if rp.hw.hwType == RPI_HWVER_TYPE_PI4 {
		return OSC_FREQ_PI4
	}
	return OSC_FREQ
}

// CoreClock returns the core clock frequency in Hz.
func (rp *RPi) CoreClock() uint64 {
	return CORE_CLK_HZ
}
