// Package drives maps drive identifiers to authorized filesystem roots.
// Mount discovery enumerates what exists on the machine; the resolver
// enforces what the caller may see.
package drives

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
)

// ErrDriveNotFound marks a drive id outside the caller's allowed set.
var ErrDriveNotFound = errors.New("drive not allowed or not found")

// ErrNoRoots marks a session whose allowed roots share nothing with
// the global allow-list. Callers must treat it as a full denial, never
// as an absent restriction.
var ErrNoRoots = errors.New("no accessible roots")

// Mount describes one browsable root with its usage numbers.
type Mount struct {
	ID         string  `json:"id"`
	MountPoint string  `json:"mount_point"`
	FSType     string  `json:"fstype"`
	Total      uint64  `json:"total"`
	Used       uint64  `json:"used"`
	Free       uint64  `json:"free"`
	Percent    float64 `json:"percent"`
}

// DeviceCapacity is the usage of one unique device backing the roots.
type DeviceCapacity struct {
	Device     string `json:"device"`
	MountPoint string `json:"mountpoint"`
	TotalBytes uint64 `json:"total_bytes"`
	UsedBytes  uint64 `json:"used_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
}

// Capacity aggregates usage across unique devices.
type Capacity struct {
	TotalBytes uint64           `json:"capacity_total_bytes"`
	UsedBytes  uint64           `json:"capacity_used_bytes"`
	FreeBytes  uint64           `json:"capacity_free_bytes"`
	PerRoot    []DeviceCapacity `json:"capacity_per_root"`
}

// Scanner discovers mounts and usage. The OS query functions are
// injectable for tests.
type Scanner struct {
	partitions func(all bool) ([]disk.PartitionStat, error)
	usage      func(path string) (*disk.UsageStat, error)
}

// NewScanner returns a Scanner backed by gopsutil.
func NewScanner() *Scanner {
	return &Scanner{partitions: disk.Partitions, usage: disk.Usage}
}

func normRoot(p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p != string(filepath.Separator) {
		p = strings.TrimRight(p, string(filepath.Separator))
	}
	return p
}

func underAny(p string, roots []string) bool {
	for _, r := range roots {
		r = normRoot(r)
		if p == r || strings.HasPrefix(p, r+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// EffectiveRoots intersects a session's allowed roots with the global
// allow-list. Empty session roots mean "no per-user restriction", so
// the global list applies; an empty global list means the session
// roots stand alone. A non-empty session list that does not intersect
// the global list is ErrNoRoots: access is denied rather than silently
// widened to every mount on the machine, so the empty result can never
// be confused with "unrestricted".
func EffectiveRoots(sessionRoots, globalRoots []string) ([]string, error) {
	if len(sessionRoots) == 0 {
		return append([]string(nil), globalRoots...), nil
	}
	if len(globalRoots) == 0 {
		out := make([]string, 0, len(sessionRoots))
		for _, r := range sessionRoots {
			out = append(out, normRoot(r))
		}
		return out, nil
	}
	var out []string
	for _, r := range sessionRoots {
		n := normRoot(r)
		if underAny(n, globalRoots) {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoRoots
	}
	return out, nil
}

// Discover returns mounted filesystems whose mountpoints lie under the
// effective roots. With no restriction configured, all mounts are
// candidates. Mounts whose usage cannot be read are skipped.
func (s *Scanner) Discover(effective []string) []Mount {
	parts, err := s.partitions(false)
	if err != nil {
		return nil
	}
	var out []Mount
	for _, p := range parts {
		mp := normRoot(p.Mountpoint)
		if len(effective) > 0 && !underAny(mp, effective) {
			continue
		}
		u, err := s.usage(p.Mountpoint)
		if err != nil {
			continue
		}
		out = append(out, Mount{
			ID:         mp,
			MountPoint: mp,
			FSType:     p.Fstype,
			Total:      u.Total,
			Used:       u.Used,
			Free:       u.Free,
			Percent:    u.UsedPercent,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ResolveRoot validates a caller-supplied drive id against the
// effective roots. The id must match a discovered mount or, as a
// fallback for bind mounts and plain directories, one of the effective
// roots directly. Anything else is ErrDriveNotFound.
func (s *Scanner) ResolveRoot(driveID string, effective []string) (string, error) {
	want := normRoot(driveID)
	if want == "" || !filepath.IsAbs(want) {
		return "", ErrDriveNotFound
	}
	for _, m := range s.Discover(effective) {
		if m.ID == want {
			return want, nil
		}
	}
	for _, r := range effective {
		if normRoot(r) == want {
			if st, err := os.Stat(want); err == nil && st.IsDir() {
				return want, nil
			}
		}
	}
	return "", ErrDriveNotFound
}

// ComputeCapacity aggregates true device capacity across the unique
// devices backing roots. Roots with no current mountpoint (offline
// disks) are skipped. all=true partition listing includes network and
// removable volumes.
func (s *Scanner) ComputeCapacity(roots []string) Capacity {
	parts, err := s.partitions(true)
	if err != nil {
		return Capacity{PerRoot: []DeviceCapacity{}}
	}

	// device -> longest matching mountpoint per root
	unique := map[string]string{}
	for _, r := range roots {
		target := normRoot(r)
		bestLen := -1
		var bestDev, bestMP string
		for _, p := range parts {
			mp := normRoot(p.Mountpoint)
			if target == mp || strings.HasPrefix(target, mp+string(filepath.Separator)) || mp == string(filepath.Separator) && strings.HasPrefix(target, mp) {
				if len(mp) > bestLen {
					dev := p.Device
					if dev == "" {
						dev = p.Mountpoint
					}
					bestLen, bestDev, bestMP = len(mp), dev, p.Mountpoint
				}
			}
		}
		if bestLen >= 0 {
			unique[bestDev] = bestMP
		}
	}

	cap := Capacity{PerRoot: []DeviceCapacity{}}
	for dev, mp := range unique {
		u, err := s.usage(mp)
		if err != nil {
			continue
		}
		entry := DeviceCapacity{
			Device:     dev,
			MountPoint: mp,
			TotalBytes: u.Total,
			UsedBytes:  u.Used,
			FreeBytes:  u.Free,
		}
		cap.PerRoot = append(cap.PerRoot, entry)
		cap.TotalBytes += entry.TotalBytes
		cap.UsedBytes += entry.UsedBytes
		cap.FreeBytes += entry.FreeBytes
	}
	sort.Slice(cap.PerRoot, func(i, j int) bool { return cap.PerRoot[i].UsedBytes > cap.PerRoot[j].UsedBytes })
	return cap
}
