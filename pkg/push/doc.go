// Package push is the SDK entry point. Manager wires the HTTP
// registration client, the persistent device state, the gateway session,
// and the lifecycle adapter into one object the host application drives.
//
// Typical use:
//
//	mgr := push.NewManager(push.Config{})
//	mgr.SetCallbacks(push.Callbacks{
//		OnPushReceived: func(n push.Notification) { show(n) },
//	})
//	mgr.Configure(42, "api-key", "https://api.doopush.com/v1")
//	mgr.RegisterDevice(ctx, deviceToken)
package push
