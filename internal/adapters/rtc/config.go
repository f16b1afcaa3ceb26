// Package rtc builds the ICE configuration browsers use for their peer
// connections. Media never flows through this server.
package rtc

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// ICEServer is the configuration form of one STUN/TURN server.
type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// NewConfiguration converts and validates configured servers; an empty list
// yields the default public STUN server.
func NewConfiguration(servers []ICEServer) (webrtc.Configuration, error) {
	if len(servers) == 0 {
		return DefaultWebRTCConfig(), nil
	}
	cfg := webrtc.Configuration{}
	for _, s := range servers {
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		cfg.ICEServers = append(cfg.ICEServers, srv)
	}
	if err := Validate(cfg); err != nil {
		return webrtc.Configuration{}, err
	}
	return cfg, nil
}

// Validate lets pion parse the configuration the same way a peer would.
func Validate(cfg webrtc.Configuration) error {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return fmt.Errorf("invalid ICE configuration: %w", err)
	}
	if err := pc.Close(); err != nil {
		log.Debug().Err(err).Str("module", "rtc").Msg("close probe peer connection")
	}
	return nil
}

// ClientConfig is the part of the configuration handed to browsers.
type ClientConfig struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

func ForClient(cfg webrtc.Configuration) ClientConfig {
	return ClientConfig{ICEServers: cfg.ICEServers}
}
