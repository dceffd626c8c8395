/*
Package sql holds the text-level helpers used around author-supplied SQL.

# Placeholders

Endpoint templates bind caller values in one of two styles, never both:

Named placeholders use double braces and bind by parameter name. Every
distinct name becomes one PostgreSQL positional parameter, and reused names
reuse the same position:

	SELECT * FROM transactions
	WHERE sender_id = {{user_id}} OR receiver_id = {{user_id}}
	  AND amount > {{min_amount}}

becomes

	SELECT * FROM transactions
	WHERE sender_id = $1 OR receiver_id = $1
	  AND amount > $2

Ordinal placeholders are plain PostgreSQL parameters. Values are bound in the
order the endpoint declares its parameters:

	SELECT * FROM widgets WHERE id = $1

Placeholders inside string literals, dollar-quoted bodies and comments are
ignored. Values are always sent to the driver as bind parameters; this package
never renders a value into statement text.

# Author statements

Statements submitted through the table and function endpoints run verbatim.
HasCreateOrReplace flags statements that may overwrite an existing object and
ParseFunctionName recovers the schema-qualified name of a CREATE FUNCTION.
*/
package sql
