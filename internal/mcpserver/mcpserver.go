// Package mcpserver exposes the Store Adapter's derived views over MCP,
// adapted from the teacher's internal/mcp/server.go device-management tool
// set: same mcp.NewServer/RegisterTool/bearer-token HandleRequest shape,
// re-pointed at read-only capture-pipeline views instead of device CRUD.
package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/paularlott/mcp"

	"github.com/netcapd/netcapd/internal/gapreport"
	"github.com/netcapd/netcapd/internal/log"
	"github.com/netcapd/netcapd/internal/model"
	"github.com/netcapd/netcapd/internal/store"
)

// Server wraps the MCP server over a read-only Store Adapter handle.
type Server struct {
	mcpServer   *mcp.Server
	store       *store.Store
	bearerToken string
}

// NewServer builds the MCP server and registers its read-only tool set.
func NewServer(st *store.Store, bearerToken string) *Server {
	s := &Server{
		mcpServer:   mcp.NewServer("netcapd", "1.0.0"),
		store:       st,
		bearerToken: bearerToken,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcpServer.RegisterTool(
		mcp.NewTool("device_status", "Get capture status for a device, or all devices if name is omitted",
			mcp.String("normalized_name", "Device normalized name (optional, lists all when omitted)"),
		),
		s.handleDeviceStatus,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("capture_coverage", "Get capture coverage grouped by capture type and vendor"),
		s.handleCaptureCoverage,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("site_inventory", "Get device counts per site, broken down by role and vendor"),
		s.handleSiteInventory,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("gap_report", "List devices missing a successful current capture of a given type",
			mcp.String("capture_type", "Capture type to check coverage for", mcp.Required()),
		),
		s.handleGapReport,
	)
}

// HandleRequest serves one MCP HTTP request, enforcing the optional bearer
// token exactly as the teacher's server does.
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	log.Debug("MCP request received", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)

	if s.bearerToken != "" {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			log.Warn("MCP request missing Authorization header", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Missing Authorization header", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(auth, "Bearer ") {
			log.Warn("MCP request invalid Authorization format", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid Authorization format", http.StatusUnauthorized)
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")
		if token != s.bearerToken {
			log.Warn("MCP request invalid token", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
	}

	s.mcpServer.HandleRequest(w, r)
}

func (s *Server) handleDeviceStatus(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	name := req.StringOr("normalized_name", "")

	rows, err := s.store.DeviceStatus(ctx, name)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to query device status: " + err.Error())
	}
	if len(rows) == 0 {
		return mcp.NewToolResponseText("No matching devices"), nil
	}

	var b strings.Builder
	for _, r := range rows {
		lastFp := "never"
		if r.LastFingerprint.Valid {
			lastFp = r.LastFingerprint.Time.Format("2006-01-02T15:04:05Z")
		}
		fmt.Fprintf(&b, "%s\tvendor=%s\tcaptures=%d/%d\tlast_fingerprint=%s\n",
			r.NormalizedName, r.Vendor, r.CaptureSuccessCount, r.CaptureTypeCount, lastFp)
	}
	return mcp.NewToolResponseText(b.String()), nil
}

func (s *Server) handleCaptureCoverage(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	rows, err := s.store.CaptureCoverage(ctx)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to query capture coverage: " + err.Error())
	}
	if len(rows) == 0 {
		return mcp.NewToolResponseText("No capture data"), nil
	}

	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s\tvendor=%s\tsuccess=%d/%d\n", r.CaptureType, r.Vendor, r.SuccessCount, r.TotalCount)
	}
	return mcp.NewToolResponseText(b.String()), nil
}

func (s *Server) handleSiteInventory(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	rows, err := s.store.SiteInventory(ctx)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to query site inventory: " + err.Error())
	}
	if len(rows) == 0 {
		return mcp.NewToolResponseText("No inventory data"), nil
	}

	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s\trole=%s\tvendor=%s\tcount=%d\n", r.SiteCode, r.DeviceRole, r.Vendor, r.DeviceCount)
	}
	return mcp.NewToolResponseText(b.String()), nil
}

func (s *Server) handleGapReport(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	captureType, err := req.String("capture_type")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("capture_type is required: " + err.Error())
	}

	report, err := gapreport.Build(ctx, s.store, model.CaptureType(captureType))
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to build gap report: " + err.Error())
	}
	if len(report.MissingHosts) == 0 {
		return mcp.NewToolResponseText(fmt.Sprintf("%s: full coverage (%d/%d)", captureType, report.CoveredCount, report.TotalDevices)), nil
	}
	return mcp.NewToolResponseText(fmt.Sprintf("%s: %d/%d covered, missing: %s",
		captureType, report.CoveredCount, report.TotalDevices, strings.Join(report.MissingHosts, ", "))), nil
}
