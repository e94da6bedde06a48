// Command idtdump installs the GDT/IDT against the hosted amd64 fakes and
// prints the resulting gate table, one row per populated vector.
package main

import (
	"flag"
	"fmt"

	"github.com/geomtech/alos/internal/irq"
)

func main() {
	flag.Parse()

	irq.InstallGDT()
	irq.Install()
	irq.RemapPIC()

	fmt.Printf("selectors: code=%#04x data=%#04x user_code=%#04x user_data=%#04x\n",
		irq.KernelCodeSelector, irq.KernelDataSelector, irq.UserCodeSelector, irq.UserDataSelector)

	fmt.Printf("%-6s %-32s %-8s %-4s %-4s %s\n", "vector", "name", "present", "dpl", "ist", "fires")
	for _, g := range irq.Dump() {
		fmt.Printf("%-6d %-32s %-8v %-4d %-4d %d\n", g.Vector, g.Name, g.Present, g.DPL, g.IST, g.Fires)
	}
}
