package unitboot

import (
	"fmt"

	"github.com/goliatone/go-unitboot/registry"
)

// Cleanup stops the connection provider bound in reg, if it is stoppable,
// and clears its binding. It is safe to call any number of times, with a nil
// registry, and never panics; failures are reported to diag.
func Cleanup(reg *registry.StandardRegistry, diag *Diagnostics) {
	defer func() {
		if r := recover(); r != nil {
			diag.CleanupFailed(registry.RoleConnectionProvider, fmt.Errorf("panic: %v", r))
		}
	}()

	binding, ok := reg.Binding(registry.RoleConnectionProvider)
	if !ok || binding == nil {
		return
	}
	if _, stoppable := binding.Service().(registry.Stoppable); !stoppable {
		return
	}
	if err := reg.StopService(binding); err != nil {
		diag.CleanupFailed(registry.RoleConnectionProvider, err)
	}
}
