// Package liveness implements an optional SNMP pre-flight probe (SPEC_FULL
// §2): a single GET of sysUpTime that reports whether a host answers. It is
// a one-shot poll, not streaming telemetry. Nothing in the Device Runner or
// the Scheduler calls it, and inventory entries carry no SNMP community
// field, so jobs are never skipped on its answer.
package liveness

import (
	"time"

	"github.com/gosnmp/gosnmp"
)

const sysUpTimeOID = ".1.3.6.1.2.1.1.3.0"

// Checker probes device liveness over SNMPv2c.
type Checker struct {
	Timeout time.Duration
}

// NewChecker returns a Checker with the documented default timeout.
func NewChecker() *Checker {
	return &Checker{Timeout: 2 * time.Second}
}

// IsAlive performs a single SNMP GET of sysUpTime against host:port using
// community. It returns (true, nil) on any successful reply and (false, nil)
// on timeout or SNMP-level failure — liveness is advisory, so transport
// errors are not propagated as hard failures.
func (c *Checker) IsAlive(host string, port uint16, community string) (bool, error) {
	params := &gosnmp.GoSNMP{
		Target:    host,
		Port:      port,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   c.Timeout,
		Retries:   1,
	}

	if err := params.Connect(); err != nil {
		return false, nil
	}
	defer params.Conn.Close()

	result, err := params.Get([]string{sysUpTimeOID})
	if err != nil {
		return false, nil
	}
	return len(result.Variables) > 0, nil
}
