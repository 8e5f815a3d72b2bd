package executor

// runnerScript is the TL-side half of the execution protocol: it imports
// the test's module, instantiates its class if needed, drives setUp/call/
// tearDown, traces executed lines back to block qualified names for
// dependency collection, and speaks the line-delimited JSON protocol of
// spec §6. It is written in the TL host language itself (Python, the only
// grammar this core parses) since Go cannot execute TL source directly;
// the Go side only spawns it and speaks its wire protocol, the same way
// the teacher's tactile/python/environment.go shells out to an external
// interpreter rather than reimplementing one.
//
// Invoked as: python3 -c <runnerScript> once|serve
const runnerScript = `
import asyncio
import contextlib
import importlib.util
import io
import json
import sys
import time
import traceback

_module_cache = {}


def _load_module(path):
    mod = _module_cache.get(path)
    if mod is not None:
        return mod
    name = "_taut_target_" + str(abs(hash(path)))
    spec = importlib.util.spec_from_file_location(name, path)
    mod = importlib.util.module_from_spec(spec)
    sys.path.insert(0, path.rsplit("/", 1)[0] if "/" in path else ".")
    spec.loader.exec_module(mod)
    _module_cache[path] = mod
    return mod


def _resolve_callable(mod, test):
    cls_name = test.get("class") or ""
    if not cls_name:
        return getattr(mod, test["callable"]), None
    cls = getattr(mod, cls_name)
    instance = cls()
    return getattr(instance, test["callable"]), instance


def _fallback_markers(fn):
    skip = getattr(fn, "_taut_skip", False)
    skip_reason = getattr(fn, "_taut_skip_reason", None)
    parallel = getattr(fn, "_taut_parallel", False)
    markers = getattr(fn, "_taut_markers", {})
    return skip, skip_reason, parallel, markers


class _BlockTracer:
    def __init__(self, blocks):
        self.blocks = blocks  # list of dicts: file_path, qualified_name, start_line, end_line
        self.hits = set()

    def _owner(self, filename, lineno):
        for b in self.blocks:
            if filename.endswith(b["file_path"]) and b["start_line"] <= lineno <= b["end_line"]:
                return (b["file_path"], b["qualified_name"])
        return None

    def trace(self, frame, event, arg):
        if event == "line":
            owner = self._owner(frame.f_code.co_filename, frame.f_lineno)
            if owner is not None:
                self.hits.add(owner)
        return self.trace


def _run_one(req):
    test = req["test"]
    blocks = req.get("blocks", [])
    do_trace = req.get("trace", False)

    own = (test["rel_path"], test.get("class") or test["callable"])
    tracer = _BlockTracer(blocks) if do_trace else None

    stdout_buf = io.StringIO()
    stderr_buf = io.StringIO()
    start = time.time()
    outcome = "passed"
    error = None

    try:
        with contextlib.redirect_stdout(stdout_buf), contextlib.redirect_stderr(stderr_buf):
            mod = _load_module(test["path"])
            fn, instance = _resolve_callable(mod, test)

            skip, skip_reason, _parallel, _markers = _fallback_markers(fn)
            if skip:
                outcome = "skipped"
                raise _SkipSignal(skip_reason or "")

            set_up = getattr(instance, "setUp", None) if instance is not None else None
            if callable(set_up):
                set_up()

            try:
                if tracer is not None:
                    sys.settrace(tracer.trace)
                if test.get("async"):
                    loop = asyncio.new_event_loop()
                    try:
                        loop.run_until_complete(fn())
                    finally:
                        loop.close()
                else:
                    fn()
            finally:
                if tracer is not None:
                    sys.settrace(None)
                tear_down = getattr(instance, "tearDown", None) if instance is not None else None
                if callable(tear_down):
                    tear_down()
    except _SkipSignal:
        pass
    except AssertionError as exc:
        outcome = "failed"
        error = {"message": str(exc), "traceback": traceback.format_exc()}
    except Exception as exc:  # noqa: BLE001 - deliberately broad, this is the test boundary
        outcome = "errored"
        error = {"message": str(exc), "traceback": traceback.format_exc()}

    duration_ms = (time.time() - start) * 1000.0

    deps = []
    if tracer is not None:
        tracer.hits.add(own)
        for file_path, qualified_name in sorted(tracer.hits):
            deps.append({"file_path": file_path, "qualified_name": qualified_name, "start_line": 0, "end_line": 0})

    result = {
        "id": test["id"],
        "outcome": outcome,
        "duration_ms": duration_ms,
        "stdout": stdout_buf.getvalue(),
        "stderr": stderr_buf.getvalue(),
    }
    if error is not None:
        result["error"] = error

    return {"id": req["id"], "result": result, "deps": deps}


class _SkipSignal(Exception):
    pass


def main():
    mode = sys.argv[1] if len(sys.argv) > 1 else "once"

    if mode == "serve":
        sys.stdout.write(json.dumps({"ready": True, "pid": __import__("os").getpid()}) + "\n")
        sys.stdout.flush()

    for line in sys.stdin:
        line = line.strip()
        if not line:
            continue
        req = json.loads(line)
        resp = _run_one(req)
        sys.stdout.write(json.dumps(resp) + "\n")
        sys.stdout.flush()
        if mode == "once":
            return


if __name__ == "__main__":
    main()
`
