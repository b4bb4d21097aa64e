// Package cryptox implements the deterministic derivation pipeline.
//
// # Pipeline
//
//  1. Salt seed: SHA-512(passphrase || pin-or-username).
//  2. Key Derivation Engine: Argon2id over the passphrase (Engine.Derive)
//     yields the 64-byte master secret held by an unlocked session.
//  3. Password Expansion Function: Argon2id again with the salt
//     seed || username || SiteInfoKey, then HKDF-SHA256 keyed by the resulting
//     seed (Engine.Expand).
//  4. Charset Mapper: rejection sampling into an Alphabet (MapToCharset).
//
// No step introduces randomness, so the same passphrase, identity, site info
// key, length and alphabet always give the same password. Nothing derived
// here is ever persisted.
//
// # Secure context
//
// Every Engine is bound to a ContextCheck. When the check fails the engine
// returns common.ErrInsecureContext before doing any work, so a weaker secret
// can never be produced by accident.
//
// # Memory
//
// Secret keeps long-lived material in memguard locked buffers. Transient
// copies (salts, seeds, raw keystream) are wiped with Wipe before the
// functions here return.
package cryptox
