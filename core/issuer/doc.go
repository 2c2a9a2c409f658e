// Package issuer obtains and renews domain certificates via ACME tls-alpn-01
// challenges and publishes them through two stable TLS server configurations:
// one answering validation probes, one serving ordinary traffic.
//
// The State is the issuance driver consumed by core/acceptor. It never
// touches connections itself; the acceptor completes handshakes against the
// configuration handles while Run keeps the certificate material behind them
// fresh, swapping certificates atomically so concurrent handshakes are never
// disturbed.
//
// # Usage
//
//	cfg, err := issuer.Load() // or fill issuer.Config directly
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	state, err := issuer.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// The renewal loop and the event pump are background tasks tied to the
//	// server's lifetime.
//	go state.Run(ctx)
//	go func() {
//		for {
//			select {
//			case <-ctx.Done():
//				return
//			case ev := <-state.Events():
//				log.Printf("acme: %s %s", ev.Type, ev.Domain)
//			}
//		}
//	}()
//
// Certificates and the ACME account key are persisted through an
// autocert.Cache (a directory cache by default) so restarts do not consume
// CA rate limits. By default the driver talks to the Let's Encrypt staging
// environment; set Production (or an explicit DirectoryURL) for trusted
// certificates.
//
// Until the first successful issuance the default configuration has no
// certificate to present and handshakes on it fail; the event sequence
// reports every attempt so hosts can observe progress.
package issuer
