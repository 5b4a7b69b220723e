// Package appauth owns the client-side authentication state of the Afrimed
// mobile app: the session store, the auth operations, the profile
// bootstrapper, and the navigation guard that keeps the visible screen
// consistent with the signed-in state.
//
// State container:
//   - Store is the single owned container of {session, user, profile,
//     loading, initialized, authError}. It is injected into the pieces that
//     need it (never a package singleton) so tests can run isolated
//     instances side by side. Every session/profile write carries a
//     monotonic ticket; a slow async completion that lost the race is
//     discarded instead of clobbering newer state.
//
// Backend collaborators:
//   - AuthClient is the narrow surface of the managed auth backend
//     (GoTrue-style REST). GoTrueClient is the HTTP implementation; tokens
//     survive restarts through a TokenStore.
//   - Profiles is the row store for the profiles table, keyed by user id.
//     NewProfilesRepository provides the Bun-backed implementation; the
//     primary key, not client locking, guarantees at most one row per user.
//
// Navigation:
//   - Guard observes the Store plus the current route segments and issues at
//     most one replace-redirect per evaluation, and none until the store is
//     initialized and the navigation container is ready.
package appauth
