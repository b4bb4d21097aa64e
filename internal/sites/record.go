package sites

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophpass/internal/common"
)

// infoSep separates the InfoKey fields and so may not appear inside them.
const infoSep = "|"

// SiteRecord is the only persisted state: which site, which account and
// which rotation. Version 0 means no version; an empty Login means no login.
type SiteRecord struct {
	ID      int64
	Domain  string
	Login   string
	Version int
}

// Normalize trims surrounding whitespace from the text fields.
func (r *SiteRecord) Normalize() {
	r.Domain = strings.TrimSpace(r.Domain)
	r.Login = strings.TrimSpace(r.Login)
}

func (r SiteRecord) Validate() error {
	if strings.TrimSpace(r.Domain) == "" {
		return fmt.Errorf("%w: domain is required", common.ErrInvalidRecord)
	}
	if strings.Contains(r.Domain, infoSep) || strings.Contains(r.Login, infoSep) {
		return fmt.Errorf("%w: domain and login must not contain %q", common.ErrInvalidRecord, infoSep)
	}
	if r.Version < 0 {
		return fmt.Errorf("%w: negative version %d", common.ErrInvalidRecord, r.Version)
	}
	return nil
}

// InfoKey is the per-site derivation label.
func (r SiteRecord) InfoKey() string {
	return InfoKey(r.Domain, r.Login, r.Version)
}

// InfoKey joins domain, login and version with "|". Absent values are empty,
// so example.com without login or version gives "example.com||".
func InfoKey(domain, login string, version int) string {
	v := ""
	if version > 0 {
		v = strconv.Itoa(version)
	}
	return domain + infoSep + login + infoSep + v
}

// SortByRecency orders records newest first. IDs grow monotonically, so the
// highest id is the most recently created.
func SortByRecency(recs []SiteRecord) {
	slices.SortStableFunc(recs, func(a, b SiteRecord) int {
		return cmp.Compare(b.ID, a.ID)
	})
}
