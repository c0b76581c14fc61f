package webservice

import (
	"fmt"
	"net"
)

type Config struct {
	Port       uint32
	AdminToken string
	NoAuth     bool
}

func (c Config) Validate() error {
	if !c.NoAuth && len(c.AdminToken) <= 0 {
		return fmt.Errorf("missing admin token, provide one or disable auth")
	}

	lis, err := net.Listen("tcp", c.address())
	if err != nil {
		return fmt.Errorf("invalid port: %s", err)
	}
	// nolint:all
	defer lis.Close()

	return nil
}

func (c Config) address() string {
	return fmt.Sprintf(":%d", c.Port)
}
