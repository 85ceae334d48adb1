// Package iam groups the identity and credential lifecycle of gatekeeper.
//
// # Layout
//
// Every domain lives in its own directory with the same split:
//
//	<domain>/          entity, error registry, repository port, forms
//	<domain>/<d>srv    service, the only layer that mutates state
//	<domain>/<d>infra  sqlx repository
//	<domain>/<d>api    fiber handlers
//
// The domains are:
//
//   - accesstoken   bearer tokens, renewal and API tokens
//   - provider      the identity provider protocol, password and OAuth providers
//   - signup        signup requests, confirmation and approval
//   - invitation    single-use invitations
//   - user          accounts, profile and e-mail change
//   - tenant        tenants resolved from the request header
//
// Shared building blocks sit next to them: auth (middleware and principal),
// cryptotoken (the single-use token gate), envelope (sealed, expiring codes),
// emailrequest (the per-address mail throttle and block links), mailer
// (templated mail scheduled after commit), store (unit of work) and scopes.
//
// # Requests
//
// A request runs inside one unit of work opened by store.Middleware. Services
// take the transaction from the context through store.Q, so a failed request
// rolls back every write, including consumed single-use tokens. Mails are
// scheduled with store.AfterCommit and never leave for a rolled back request.
//
// # Wiring
//
// iamcontainer builds the whole graph from a config.Config:
//
//	c, err := iamcontainer.New(ctx, iamcontainer.Deps{DB: db, Cfg: cfg, Mail: sender})
//	if err != nil {
//		return err
//	}
//	c.RegisterOperational(app)
//	c.RegisterRoutes(app)
package iam
