package server

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/orahub/oracle-mcp/internal/capability"
	"github.com/orahub/oracle-mcp/internal/envelope"
	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/registry"
	"github.com/orahub/oracle-mcp/internal/validate"
)

// capabilityHints name the Oracle prerequisite for each feature tag.
var capabilityHints = map[capability.Tag]string{
	capability.TagPDB:          "requires Oracle 12c or later running as a container database",
	capability.TagAWR:          "requires Enterprise Edition with the Diagnostics Pack",
	capability.TagVector:       "requires Oracle 23ai or later",
	capability.TagPartitioning: "requires the Partitioning option",
	capability.TagJSON:         "requires Oracle 12c or later",
	capability.TagTDE:          "requires the Advanced Security option",
	capability.TagVault:        "requires Database Vault",
	capability.TagParallel:     "requires Enterprise Edition",
}

// addTools registers every exposed descriptor with the MCP server. The
// exposure filter applies here, so hidden tools are absent from both
// tools/list and tools/call.
func (s *Server) addTools(mcpSrv *mcpserver.MCPServer) error {
	exposure := registry.Exposure(s.cfg.Tools.Exposure)
	for _, desc := range s.registry.List(exposure) {
		schema, err := validate.Parse(desc.InputSchema)
		if err != nil {
			return err
		}
		tool := mcp.NewToolWithRawSchema(desc.Name, desc.Description, desc.InputSchema)
		mcpSrv.AddTool(tool, s.toolHandler(desc, schema))
	}
	return nil
}

// toolHandler wraps one descriptor into the dispatch pipeline: worker
// admission, argument validation, capability gate, deadline, handler,
// envelope. Every call produces a terminal envelope, cancellation
// included.
func (s *Server) toolHandler(desc *registry.Descriptor, schema *validate.Schema) mcpserver.ToolHandlerFunc {
	capabilitiesUsed := make([]string, len(desc.Requires))
	for i, tag := range desc.Requires {
		capabilitiesUsed[i] = string(tag)
	}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		started := time.Now()
		correlation := uuid.NewString()
		meta := envelope.Metadata{Tool: desc.Name, CapabilitiesUsed: capabilitiesUsed}

		fail := func(err error) (*mcp.CallToolResult, error) {
			oe := oraerr.AsError(err).WithCorrelation(correlation)
			s.logger.Error().
				Str("tool", desc.Name).
				Str("correlation_id", correlation).
				Str("kind", string(oe.Kind)).
				Str("code", oe.Code).
				AnErr("cause", oe.Unwrap()).
				Msg(oe.Message)
			meta.ExecutionMS = envelope.DurationMS(time.Since(started))
			return render(envelope.Failure(oe, meta)), nil
		}

		// Worker admission bounds concurrent executions; the wait
		// respects the caller's cancellation.
		if err := s.workers.Acquire(ctx, 1); err != nil {
			return fail(err)
		}
		defer s.workers.Release(1)

		// Arguments arrive untyped; GetArguments folds anything that is
		// not a JSON object into a nil map, which validation then treats
		// as no arguments at all.
		args, warnings, err := validate.Arguments(schema, request.GetArguments(), desc.Lenient)
		if err != nil {
			return fail(err)
		}

		s.logger.Debug().
			Str("tool", desc.Name).
			Str("correlation_id", correlation).
			Interface("arguments", validate.Redact(schema, args)).
			Msg("tool call")

		// Capability gate: a missing feature fails before any further
		// Oracle round trip.
		for _, tag := range desc.Requires {
			if !s.detector.Supports(ctx, tag) {
				return fail(oraerr.Capability("tool %s is not available on this database", desc.Name).
					WithHint(capabilityHints[tag]))
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Query.Timeout())
		defer cancel()

		out, err := desc.Handler(callCtx, args)
		if err != nil {
			return fail(err)
		}

		if info, infoErr := s.detector.Info(ctx); infoErr == nil {
			meta.OracleVersion = info.Version
		}
		meta.ExecutionMS = envelope.DurationMS(time.Since(started))
		meta.Warnings = append(warnings, out.Warnings...)
		meta.Truncated = out.Truncated
		return render(envelope.Success(out.Data, meta)), nil
	}
}

// render converts an envelope into the MCP content frame.
func render(env *envelope.Envelope) *mcp.CallToolResult {
	result := mcp.NewToolResultText(env.JSON())
	result.IsError = env.IsError()
	return result
}
