// Package models defines the records persisted in the YAML collections and
// returned by the API.
package models

import "time"

// Role is an access level. Routes allow roles by exact match; there is no
// ordering between them.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

// User is a panel identity stored in users.yaml.
type User struct {
	// Username is the primary key.
	Username string `yaml:"username" json:"username"`
	Email    string `yaml:"email" json:"email"`
	Role     Role   `yaml:"role" json:"role"`
	// PasswordHash is the codec output. It is never serialised to clients.
	PasswordHash string    `yaml:"password_hash" json:"-"`
	CreatedAt    time.Time `yaml:"created_at" json:"created_at"`
}

// SharedLink is a published file stored in files.yaml. Pointer fields are
// optional and omitted from YAML when unset.
type SharedLink struct {
	ID       string `yaml:"id" json:"id"`
	Filename string `yaml:"filename" json:"filename"`
	// Path is relative to the blob store root: <id>/<filename>.
	Path              string     `yaml:"path" json:"path"`
	PasswordHash      *string    `yaml:"password_hash,omitempty" json:"-"`
	PasswordProtected bool       `yaml:"password_protected" json:"password_protected"`
	ExpiresAt         *time.Time `yaml:"expires_at,omitempty" json:"expires_at"`
	MaxDownloads      *int       `yaml:"max_downloads,omitempty" json:"max_downloads"`
	DownloadCount     int        `yaml:"download_count" json:"download_count"`
	Owner             string     `yaml:"owner" json:"owner"`
	ShareURL          string     `yaml:"share_url" json:"share_url"`
	CreatedAt         time.Time  `yaml:"created_at" json:"created_at"`
	Active            bool       `yaml:"active" json:"active"`
}

// LinkMetadata is the public view of a link returned before download.
type LinkMetadata struct {
	ID                string     `json:"id"`
	Filename          string     `json:"filename"`
	Filesize          int64      `json:"filesize"`
	ContentType       string     `json:"content_type"`
	ExpiresAt         *time.Time `json:"expires_at"`
	MaxDownloads      *int       `json:"max_downloads"`
	DownloadCount     int        `json:"download_count"`
	PasswordProtected bool       `json:"password_protected"`
	Active            bool       `json:"active"`
}

// SiteAnalytics accumulates counters reported for a website.
type SiteAnalytics struct {
	Requests    int64   `yaml:"requests" json:"requests"`
	Errors      int64   `yaml:"errors" json:"errors"`
	BandwidthMB float64 `yaml:"bandwidth_mb" json:"bandwidth_mb"`
}

// Website is a hosted site stored in websites.yaml.
type Website struct {
	Name       string        `yaml:"name" json:"name"`
	RootPath   string        `yaml:"root_path" json:"root_path"`
	Domains    []string      `yaml:"domains" json:"domains"`
	SSLEnabled bool          `yaml:"ssl_enabled" json:"ssl_enabled"`
	Upstream   *string       `yaml:"upstream,omitempty" json:"upstream"`
	Analytics  SiteAnalytics `yaml:"analytics" json:"analytics"`
}

// SiteFile is one entry in a website's root directory listing.
type SiteFile struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	IsDir   bool      `json:"is_dir"`
	ModTime time.Time `json:"modified_at"`
}

// SystemSettings mirrors system.yaml.
type SystemSettings struct {
	Instance  InstanceSettings  `yaml:"instance" json:"instance"`
	Security  SecuritySettings  `yaml:"security" json:"security"`
	Analytics AnalyticsSettings `yaml:"analytics" json:"analytics"`
}

type InstanceSettings struct {
	Name    string `yaml:"name" json:"name"`
	BaseURL string `yaml:"base_url" json:"base_url"`
}

type SecuritySettings struct {
	// SecretKey signs session tokens. It is never returned by the API.
	SecretKey          string `yaml:"secret_key" json:"-"`
	TokenExpiryMinutes int    `yaml:"token_expiry_minutes" json:"token_expiry_minutes"`
}

type AnalyticsSettings struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Backup describes a zip archive in the backups directory.
type Backup struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Container is a summary row from the container runtime. Status is the
// machine state (running, exited); Details is the runtime's own text.
type Container struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
	Ports   string `json:"ports,omitempty"`
}

// NetworkRate is bytes per second over the last sampling interval.
type NetworkRate struct {
	BytesSentPerSec uint64 `json:"bytes_sent_per_sec"`
	BytesRecvPerSec uint64 `json:"bytes_recv_per_sec"`
}

// SystemMetrics is a point-in-time host snapshot.
type SystemMetrics struct {
	CPUPercent    float64     `json:"cpu_percent"`
	MemoryPercent float64     `json:"memory_percent"`
	MemoryUsed    uint64      `json:"memory_used"`
	MemoryTotal   uint64      `json:"memory_total"`
	DiskPercent   float64     `json:"disk_percent"`
	DiskUsed      uint64      `json:"disk_used"`
	DiskTotal     uint64      `json:"disk_total"`
	Temperature   *float64    `json:"temperature"`
	Network       NetworkRate `json:"network"`
}
