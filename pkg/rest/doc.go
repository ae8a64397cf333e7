// Package rest serves the listing engine over HTTP.
//
// Every resource in the registry is exposed under its name:
//
//	GET  /{resource}        list, returns a list envelope
//	POST /{resource}        list with parameters in a JSON or form body; requires _method=GET
//	GET  /{resource}/{id}   show one object
//
// List parameters are read from the query string (JSON-valued parameters as
// JSON text) or from the body:
//
//	Parameter      | Type    | Description
//	---------------|---------|----------------------------------------------
//	filters        | JSON    | [[attribute, operator, value], ...]
//	where          | JSON    | {"attribute": value, ...}
//	order          | JSON    | ["column desc", ...] or "column asc,other"
//	select         | JSON    | ["column", ...]
//	distinct       | boolean | SELECT DISTINCT
//	limit          | integer | default 100, capped by the server
//	offset         | integer | default 0
//	count          | string  | "exact" (default) or "none"
//	include_trash  | boolean | also list trashed rows
//	include        | string  | reference column whose targets fill "included"
//	reader_tokens  | JSON    | extra tokens granting read access (GET only)
//
// Booleans accept true, false, 1 and 0. "Prefer: count=none" is honored when
// count is not given.
//
// Errors are returned as
//
//	{"errors": ["message"], "error_token": "1700000000+0a1b2c3d"}
//
// with 422 for invalid parameters, 401 without credentials, 403 when the
// credentials grant no access, 404 for unknown resources or objects, and 500
// for database failures. The error token is logged with the cause.
//
// Example usage:
//
//	engine := listing.New(pg.NewSnapshotter(pool), registry, scope.NewResolver(nil))
//	router := httputil.NewRouter()
//	rest.NewServer(engine, scope.NewTokenAuthenticator(pool)).Register(router.Group("/arvados/v1"))
//	log.Fatal(router.ListenAndServe(":8080"))
package rest
