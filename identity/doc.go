// Package identity implements the account-side identifiers of the sync
// protocol: the protocol username folded from an account name, and the
// 16-byte sync key together with its human-friendly text form.
//
// The friendly form is the lower-case base32 encoding of the key with 'l'
// written as '8' and 'o' written as '9', grouped with dashes:
//
//	y-4nkps-6yxav-i75xn-uv9ds-r472i
package identity
