// Package auth stores Instagram Graph API access tokens.
//
// Tokens are kept in the system keychain when one is available, in a
// PBKDF2/AES-GCM encrypted file otherwise, and can always be supplied through
// INSTAGRAM_ACCESS_TOKEN. Manager tries the stores in that order.
package auth
