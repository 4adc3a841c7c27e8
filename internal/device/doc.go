// Package device is the host-side device table the sound switch bridge
// publishes into.
//
// Every complete endpoint attribute becomes one Device keyed by its mapping
// handle: a volume slider for defaultVolume and a tone selector for toneId.
// The bridge calls Registry.CreateOrUpdateDevice after each sync; the API
// calls SendCommand and DeleteDevice, which the Registry forwards to the
// bridge through the hooks set with SetCommandHandler and SetRemoveHandler.
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//	registry.SetCommandHandler(bridge.HandleUserCommand)
//	registry.SetRemoveHandler(bridge.HandleDeviceRemoved)
package device
