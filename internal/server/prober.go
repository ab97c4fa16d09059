package server

import (
	"context"
	"strings"

	"github.com/orahub/oracle-mcp/internal/capability"
	"github.com/orahub/oracle-mcp/internal/exec"
	"github.com/orahub/oracle-mcp/internal/pool"
)

// poolProber runs the fixed capability probe set on one borrowed
// session. Missing views (XE lacks v$option rows, pre-12c lacks the cdb
// column) degrade to empty results rather than failing the probe.
type poolProber struct {
	pool   *pool.Pool
	engine *exec.Engine
}

func (p *poolProber) Probe(ctx context.Context) (*capability.ProbeResult, error) {
	result := &capability.ProbeResult{Options: make(map[string]string)}

	err := p.pool.WithConnection(ctx, "capability_probe", func(ctx context.Context, entry *pool.Entry) error {
		versionRes, err := p.engine.ExecuteOn(ctx, entry, exec.Plan{
			SQL: "SELECT banner FROM v$version", Mode: exec.ModeQuery,
		})
		if err != nil {
			return err
		}
		for _, row := range versionRes.Rows {
			if banner, ok := row["BANNER"].(string); ok {
				result.Banners = append(result.Banners, banner)
			}
		}

		optionRes, err := p.engine.ExecuteOn(ctx, entry, exec.Plan{
			SQL: "SELECT parameter, value FROM v$option", Mode: exec.ModeQuery,
		})
		if err == nil {
			for _, row := range optionRes.Rows {
				name, _ := row["PARAMETER"].(string)
				value, _ := row["VALUE"].(string)
				if name != "" {
					result.Options[name] = value
				}
			}
		}

		cdbRes, err := p.engine.ExecuteOn(ctx, entry, exec.Plan{
			SQL: "SELECT cdb FROM v$database", Mode: exec.ModeQuery,
		})
		if err == nil && len(cdbRes.Rows) > 0 {
			if cdb, ok := cdbRes.Rows[0]["CDB"].(string); ok {
				result.CDB = strings.ToUpper(cdb)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
