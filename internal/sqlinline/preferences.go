package sqlinline

const QSelectPreference = `--sql 5b7e0b34-5948-4305-b70b-62f9859a5cd4
select value
from preferences
where key = ?
limit 1;
`

const QUpsertPreference = `--sql 9d6bed75-0bab-4eb2-9276-99bc9d62a251
insert into preferences(key, value, updated_at)
values (?, ?, ?)
on conflict(key) do update set
  value = excluded.value,
  updated_at = excluded.updated_at;
`

const QDeletePreference = `--sql 0b34a920-0ac0-44c1-9492-552a06b182a3
delete from preferences
where key = ?;
`
