package engine

// preprocessSource rewrites recipe source into the dialect zygomys reads:
//
//   - :name becomes the string "__kw_name", so keywords never collide with
//     recipe variables of the same name. Direction keywords such as :+y and
//     :-x are accepted as well.
//   - A hyphen between identifier characters becomes an underscore, so
//     sin-deg calls sin_deg instead of subtracting.
//   - ; comments become // comments.
//
// String literals and comment bodies are copied unchanged.
func preprocessSource(source string) string {
	r := rewriter{src: source, out: make([]byte, 0, len(source)+len(source)/4)}
	for r.pos < len(r.src) {
		switch c := r.src[r.pos]; {
		case c == '"':
			r.quoted('"', true)
		case c == '`':
			r.quoted('`', false)
		case c == ';':
			r.comment()
		case c == ':' && r.keyword():
		case c == '-' && r.kebab():
			r.out = append(r.out, '_')
			r.pos++
		default:
			r.out = append(r.out, c)
			r.pos++
		}
	}
	return string(r.out)
}

type rewriter struct {
	src string
	pos int
	out []byte
}

// quoted copies a literal delimited by q, honouring backslash escapes when
// escapes is set.
func (r *rewriter) quoted(q byte, escapes bool) {
	start := r.pos
	r.pos++
	for r.pos < len(r.src) && r.src[r.pos] != q {
		if escapes && r.src[r.pos] == '\\' && r.pos+1 < len(r.src) {
			r.pos++
		}
		r.pos++
	}
	if r.pos < len(r.src) {
		r.pos++
	}
	r.out = append(r.out, r.src[start:r.pos]...)
}

// comment rewrites a run of semicolons to // and copies the rest of the line.
func (r *rewriter) comment() {
	r.out = append(r.out, '/', '/')
	for r.pos < len(r.src) && r.src[r.pos] == ';' {
		r.pos++
	}
	start := r.pos
	for r.pos < len(r.src) && r.src[r.pos] != '\n' {
		r.pos++
	}
	r.out = append(r.out, r.src[start:r.pos]...)
}

// keyword rewrites the keyword at r.pos and reports whether there was one.
// := is left alone.
func (r *rewriter) keyword() bool {
	rest := r.src[r.pos+1:]
	var n int
	switch {
	case len(rest) == 0 || rest[0] == '=':
		return false
	case isSign(rest[0]) && len(rest) > 1 && isAxis(rest[1]) && (len(rest) == 2 || !isKeywordChar(rest[2])):
		n = 2
	case isLetter(rest[0]):
		for n < len(rest) && isKeywordChar(rest[n]) {
			n++
		}
	default:
		return false
	}
	r.out = append(r.out, '"')
	r.out = append(r.out, kwPrefix...)
	r.out = append(r.out, rest[:n]...)
	r.out = append(r.out, '"')
	r.pos += 1 + n
	return true
}

// kebab reports whether the hyphen at r.pos joins two identifier parts
// rather than acting as minus.
func (r *rewriter) kebab() bool {
	p := r.pos
	return p > 0 && p+1 < len(r.src) && isIdentChar(r.src[p-1]) && isLetter(r.src[p+1])
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isKeywordChar(c byte) bool {
	return isIdentChar(c) || c == '-'
}

func isSign(c byte) bool { return c == '+' || c == '-' }

func isAxis(c byte) bool { return c == 'x' || c == 'y' }
