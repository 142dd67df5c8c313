package inbound

import "github.com/shandysiswandi/mailrelay/internal/pkg/router"

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.GET("/health", end.Health)

	r.POST("/api/v1/mail/send", end.SendMail)

	r.GET("/api/v1/mail/transports", end.ListTransports)
	r.POST("/api/v1/mail/transports/restart", end.RestartTransports)

	r.GET("/api/v1/mail/deliveries", end.ListDeliveries)
	r.GET("/api/v1/mail/deliveries/:id", end.GetDelivery)
}
