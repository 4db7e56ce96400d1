package gateway

import (
	"fmt"

	"github.com/rdm-project/rdm-server/internal/store"
)

// ConnectionSpec is the plaintext view of a device's connectivity descriptor,
// ready to be turned into a Guacamole parameter map. Credentials are decrypted
// by the synchronizer before a spec is built; a spec must never be persisted.
type ConnectionSpec struct {
	Name       string
	Protocol   store.Protocol
	Host       string
	Port       int
	Username   string
	Password   string
	PrivateKey string
}

// ProtocolName is the Guacamole protocol identifier for this spec.
func (cs ConnectionSpec) ProtocolName() string {
	return string(cs.Protocol)
}

// Parameters builds the full Guacamole parameter map for the spec's protocol.
// The per-protocol sets mirror what guacd expects: RDP carries display-feature
// toggles, VNC color settings, SSH terminal settings plus optional key material.
func (cs ConnectionSpec) Parameters() map[string]string {
	params := map[string]string{
		"hostname": cs.Host,
		"port":     fmt.Sprintf("%d", cs.Port),
	}
	if cs.Username != "" {
		params["username"] = cs.Username
	}
	if cs.Password != "" {
		params["password"] = cs.Password
	}

	switch cs.Protocol {
	case store.ProtocolRDP:
		params["security"] = "any"
		params["ignore-cert"] = "true"
		params["enable-wallpaper"] = "false"
		params["enable-theming"] = "false"
		params["enable-font-smoothing"] = "true"
		params["enable-full-window-drag"] = "true"
		params["enable-desktop-composition"] = "true"
		params["enable-menu-animations"] = "true"
		params["disable-bitmap-caching"] = "false"
		params["disable-offscreen-caching"] = "false"
		params["disable-glyph-caching"] = "false"
	case store.ProtocolVNC:
		params["color-depth"] = "24"
		params["dpi"] = "96"
	case store.ProtocolSSH:
		if cs.PrivateKey != "" {
			params["private-key"] = cs.PrivateKey
		}
		params["font-name"] = "monospace"
		params["font-size"] = "12"
		params["color-scheme"] = "gray-black"
	}

	return params
}
