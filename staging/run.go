package staging

import (
	"errors"
	"go/token"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/bake/internal/diag"
	"github.com/roach88/bake/literal"
)

// Run evaluates the requested members in order. It stops at the first
// fault; results gathered so far are kept in the report.
func Run(r *Registry, req *Request) *Report {
	rep := &Report{Results: make([]Result, 0, len(req.Members))}
	seq := 0
	for _, mr := range req.Members {
		res := Result{Key: mr.Key}

		m, status := r.Bind(mr.Key)
		switch status {
		case BindNotFound:
			rep.Results = append(rep.Results, failed(res, diag.CodeBinding, "no invocable member "+mr.Key+" in the artifact"))
			continue
		case BindAmbiguous:
			rep.Results = append(rep.Results, failed(res, diag.CodeBinding, "member "+mr.Key+" is ambiguous in the artifact"))
			continue
		}

		if err := m.Validate(); err != nil {
			var se *ShapeError
			errors.As(err, &se)
			rep.Results = append(rep.Results, failed(res, se.Code, se.Message))
			continue
		}

		if mr.Dir != "" {
			if err := os.Chdir(mr.Dir); err != nil {
				rep.Fault = &Fault{Key: m.Key, Message: err.Error()}
				return rep
			}
		}

		seq++
		res.Seq = seq
		v, err := m.Invoke()
		if err != nil {
			var f *Fault
			if errors.As(err, &f) {
				rep.Fault = f
			} else {
				rep.Fault = &Fault{Key: m.Key, Message: err.Error()}
			}
			return rep
		}
		if m.Void() {
			res.Status = StatusVoid
			rep.Results = append(rep.Results, res)
			continue
		}
		rep.Results = append(rep.Results, r.encode(res, mr, v, m.Type()))
	}
	return rep
}

func (r *Registry) encode(res Result, mr MemberRequest, v reflect.Value, declared reflect.Type) Result {
	im := literal.NewImports()
	for _, name := range mr.Reserve {
		im.Reserve(name)
	}
	paths := make([]string, 0, len(mr.Imports))
	for p := range mr.Imports {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		im.Use(p, mr.Imports[p])
	}

	home := homeOf(mr)
	enc := literal.NewEncoder(home, im)
	for _, c := range r.enums {
		if c.Path == home || token.IsExported(c.Name) {
			enc.RegisterEnum(c)
		}
	}

	if mr.Deserialize {
		blob, err := enc.Blob(v, declared)
		if err != nil {
			return failed(res, diag.CodeBlob, err.Error())
		}
		res.Status = StatusOK
		res.Body = blob.Stmts
		res.Imports = im.List()
		return res
	}

	expr, err := enc.Expr(v, declared)
	if err != nil {
		msg := err.Error()
		if declared != nil && literal.Serializable(declared) == "" {
			msg += "; mark the member //bake:eval deserialize to embed it as gob data"
		}
		return failed(res, diag.CodeLiteral, msg)
	}
	res.Status = StatusOK
	res.Expr = expr
	res.Imports = im.List()
	return res
}

func failed(res Result, code, msg string) Result {
	res.Status = StatusFailed
	res.Code = code
	res.Message = msg
	return res
}

// homeOf returns the import path of the requested member's package.
func homeOf(mr MemberRequest) string {
	if mr.Home != "" {
		return mr.Home
	}
	if i := strings.LastIndexByte(mr.Key, '.'); i > 0 {
		return mr.Key[:i]
	}
	return ""
}
