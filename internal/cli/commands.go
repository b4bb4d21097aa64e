package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophpass/internal/common"
	"github.com/dmitrijs2005/gophpass/internal/cryptox"
	"github.com/dmitrijs2005/gophpass/internal/session"
	"github.com/dmitrijs2005/gophpass/internal/sites"
)

// Login asks for username, optional PIN and passphrase, then unlocks.
func (a *App) Login(ctx context.Context) error {
	if a.isUnlocked() {
		return fmt.Errorf("login: %w", common.ErrSessionBusy)
	}
	user, err := getSimpleText(a.in, "Username", a.out)
	if err != nil {
		return err
	}
	pin, err := getSimpleText(a.in, "PIN (optional)", a.out)
	if err != nil {
		return err
	}
	pass, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pass)

	printlnFn("Deriving master secret...")
	if err := a.sess.Unlock(ctx, pass, cryptox.Identity{Username: user, PIN: pin}); err != nil {
		return err
	}
	printlnFn("Unlocked.")
	return nil
}

func (a *App) readRecord(cur sites.SiteRecord) (sites.SiteRecord, error) {
	domain, err := getWithDefault(a.in, "Domain", cur.Domain, a.out)
	if err != nil {
		return cur, err
	}
	login, err := getWithDefault(a.in, "Login (optional, '-' for none)", cur.Login, a.out)
	if err != nil {
		return cur, err
	}
	if login == "-" {
		login = ""
	}
	curVersion := ""
	if cur.Version > 0 {
		curVersion = strconv.Itoa(cur.Version)
	}
	v, err := getWithDefault(a.in, "Version (optional, '-' for none)", curVersion, a.out)
	if err != nil {
		return cur, err
	}
	version, err := parseVersion(v)
	if err != nil {
		return cur, fmt.Errorf("%w: %v", common.ErrInvalidRecord, err)
	}
	return sites.SiteRecord{ID: cur.ID, Domain: domain, Login: login, Version: version}, nil
}

func (a *App) Add(ctx context.Context) error {
	if !a.isUnlocked() {
		return common.ErrLockedSessionAccess
	}
	rec, err := a.readRecord(sites.SiteRecord{})
	if err != nil {
		return err
	}
	created, err := a.sess.CreateSite(ctx, rec)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Added site #%d.", created.ID))
	return nil
}

func (a *App) Edit(ctx context.Context, id int64) error {
	cur, err := a.sess.Site(ctx, id)
	if err != nil {
		return err
	}
	rec, err := a.readRecord(cur)
	if err != nil {
		return err
	}
	if err := a.sess.UpdateSite(ctx, rec); err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Updated site #%d.", id))
	return nil
}

func (a *App) Delete(ctx context.Context, id int64) error {
	rec, err := a.sess.Site(ctx, id)
	if err != nil {
		return err
	}
	answer, err := getSimpleText(a.in, fmt.Sprintf("Delete %s? (y/N)", formatRecord(rec)), a.out)
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "y") {
		printlnFn("Cancelled.")
		return nil
	}
	if err := a.sess.DeleteSite(ctx, id); err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Deleted site #%d.", id))
	return nil
}

// List prints every site with its password. Passwords are derived one after
// another; a failed one is marked on its own line.
func (a *App) List(ctx context.Context) error {
	recs, err := a.sess.ListSites(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		printlnFn("No sites yet, type 'add' to create one.")
		return nil
	}
	for _, r := range a.sess.Passwords(ctx, recs, a.length) {
		pw := r.Password
		if r.Err != nil {
			pw = "<" + describe(r.Err) + ">"
		}
		printlnFn(formatRecord(r.Record) + "  " + pw)
	}
	return nil
}

func (a *App) Find(ctx context.Context, domain string) error {
	recs, err := a.sess.FindSites(ctx, domain)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		printlnFn("No sites for " + domain + ".")
		return nil
	}
	for _, r := range recs {
		printlnFn(formatRecord(r))
	}
	return nil
}

func (a *App) Show(ctx context.Context, id int64) error {
	rec, err := a.sess.Site(ctx, id)
	if err != nil {
		return err
	}
	pw, err := a.sess.Password(ctx, rec, a.length)
	if err != nil {
		return err
	}
	printlnFn(formatRecord(rec) + "  " + pw)
	return nil
}

func (a *App) Copy(ctx context.Context, id int64) error {
	rec, err := a.sess.Site(ctx, id)
	if err != nil {
		return err
	}
	pw, err := a.sess.Password(ctx, rec, a.length)
	if err != nil {
		return err
	}
	if err := a.clip.Copy(pw); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	printlnFn(fmt.Sprintf("Copied password for %s, clipboard clears in %s.", rec.Domain, a.clip.ClearAfter()))
	return nil
}

func (a *App) ClearClipboard() error {
	if err := a.clip.Clear(); err != nil {
		return err
	}
	printlnFn("Clipboard cleared.")
	return nil
}

func (a *App) Lock() {
	a.sess.Lock(session.ReasonManual)
	printlnFn("Locked.")
}

// Reset asks for confirmation, deletes every site and locks.
func (a *App) Reset(ctx context.Context) error {
	if !a.isUnlocked() {
		return common.ErrLockedSessionAccess
	}
	answer, err := getSimpleText(a.in, "This deletes every stored site. Type RESET to confirm", a.out)
	if err != nil {
		return err
	}
	if answer != "RESET" {
		printlnFn("Cancelled.")
		return nil
	}
	if err := a.sess.Reset(ctx); err != nil {
		return err
	}
	printlnFn("All sites deleted.")
	return nil
}

// formatRecord renders "#id domain [login] [vN]".
func formatRecord(r sites.SiteRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s", r.ID, r.Domain)
	if r.Login != "" {
		b.WriteString(" " + r.Login)
	}
	if r.Version > 0 {
		fmt.Fprintf(&b, " v%d", r.Version)
	}
	return b.String()
}
