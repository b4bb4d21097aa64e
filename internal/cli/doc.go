// Package cli is the interactive front end of gophpass: a small REPL over a
// session.Session and a clipboard.Copier.
//
// Commands
//
//	login            unlock with username, optional PIN and passphrase
//	add              store a new site (domain, login, version)
//	edit <id>        change a site; blank answers keep the current value
//	delete <id>      remove a site
//	list             every site with its password, newest first
//	find <domain>    sites for one domain
//	show <id>        print one password
//	copy <id>        copy one password; the clipboard is cleared later
//	clear            clear the clipboard now
//	lock             lock the session
//	reset            delete every site and lock
//	help             show commands
//	exit | quit      leave
package cli
