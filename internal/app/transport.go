package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shandysiswandi/mailrelay/internal/pkg/mail"
	"github.com/shandysiswandi/mailrelay/internal/pkg/messaging"
	"github.com/shandysiswandi/mailrelay/internal/pkg/storage"
)

const (
	transportSMTP   = "smtp"
	transportBroker = "broker"
	transportSpool  = "spool"
)

var (
	errUnknownTransport = errors.New("app: unknown mail transport type")
	errNoMessaging      = errors.New("app: broker transport needs messaging.driver")
	errNoStorage        = errors.New("app: spool transport needs storage.driver")
)

// transportSettings is one entry of mail.transports.
type transportSettings struct {
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"`
	// Disabled keeps the entry in the file without joining the pool.
	Disabled bool `mapstructure:"disabled"`

	SMTP struct {
		Host               string `mapstructure:"host"`
		Port               int    `mapstructure:"port"`
		Username           string `mapstructure:"username"`
		Password           string `mapstructure:"password"`
		HelloName          string `mapstructure:"hello_name"`
		DialTimeoutSeconds int    `mapstructure:"dial_timeout_seconds"`
		InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	} `mapstructure:"smtp"`

	Broker struct {
		Topic string `mapstructure:"topic"`
	} `mapstructure:"broker"`

	Spool struct {
		Bucket string `mapstructure:"bucket"`
		Prefix string `mapstructure:"prefix"`
	} `mapstructure:"spool"`
}

// buildTransports turns mail.transports into pool members, in file order.
// publisher and store may be nil when their driver is not configured.
func buildTransports(
	settings []transportSettings,
	from string,
	publisher messaging.Publisher,
	store storage.Storage,
) ([]mail.Transport, error) {
	transports := make([]mail.Transport, 0, len(settings))

	for i, s := range settings {
		if s.Disabled {
			continue
		}

		t, err := buildTransport(s, from, publisher, store)
		if err != nil {
			return nil, fmt.Errorf("mail.transports[%d] %q: %w", i, s.Name, err)
		}
		transports = append(transports, t)
	}

	return transports, nil
}

func buildTransport(s transportSettings, from string, publisher messaging.Publisher, store storage.Storage) (mail.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case transportSMTP:
		return mail.NewSMTP(mail.SMTPConfig{
			Name:               s.Name,
			Host:               s.SMTP.Host,
			Port:               s.SMTP.Port,
			Username:           s.SMTP.Username,
			Password:           s.SMTP.Password,
			From:               from,
			HelloName:          s.SMTP.HelloName,
			DialTimeout:        time.Duration(s.SMTP.DialTimeoutSeconds) * time.Second,
			InsecureSkipVerify: s.SMTP.InsecureSkipVerify,
		})
	case transportBroker:
		if publisher == nil {
			return nil, errNoMessaging
		}
		return mail.NewBroker(publisher, mail.BrokerConfig{Name: s.Name, Topic: s.Broker.Topic, From: from})
	case transportSpool:
		if store == nil {
			return nil, errNoStorage
		}
		return mail.NewSpool(store, mail.SpoolConfig{Name: s.Name, Bucket: s.Spool.Bucket, Prefix: s.Spool.Prefix, From: from})
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownTransport, s.Type)
	}
}
