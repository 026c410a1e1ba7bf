package gpio

// SimulateLevel sets the GPLEV bit of pin in regs, as if something outside
// were driving it. On mapped hardware GPLEV is read-only and this has no
// effect, so it's only useful with a block that lives in ordinary memory.
func SimulateLevel(regs *Registers, pin int, high bool) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	bank, bit := bankPos(uint8(pin))
	r := &regs.GPLEV[bank]
	for {
		old := r.Read()
		v := old &^ (1 << bit)
		if high {
			v |= 1 << bit
		}
		if r.cas(old, v) {
			return nil
		}
	}
}
